//go:build !windows

package proxy

import "syscall"

// Exec replaces the current process image with inv's target binary, per
// spec.md §4.8's "exec ... with the remaining arguments": on POSIX the
// shim never returns, so the child directly inherits the controlling
// terminal and its exit code becomes the shim's exit code without an
// intermediate supervisor process.
func Exec(inv Invocation) error {
	return syscall.Exec(inv.Path, inv.Args, inv.Env)
}
