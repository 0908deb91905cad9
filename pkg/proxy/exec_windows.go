//go:build windows

package proxy

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Exec runs inv's target binary and blocks until it exits, then terminates
// the current process with the child's exit code. Windows has no
// process-image-replacement primitive equivalent to POSIX exec(2), so the
// shim must supervise the child and forward streams/exit code itself
// (spec.md §4.8's "Proxied invocations ... exits with the child process's
// exit code; forwards all standard streams transparently").
//
// Extension-less scripts such as leanc cannot be launched directly by
// CreateProcess; when the target has no extension, it is run through a
// POSIX shell interpreter if one can be found on PATH.
func Exec(inv Invocation) error {
	name := inv.Path
	args := inv.Args[1:]
	if filepath.Ext(name) == "" {
		if sh, err := exec.LookPath("sh"); err == nil {
			args = append([]string{name}, args...)
			name = sh
		}
	}

	cmd := exec.Command(name, args...)
	cmd.Env = inv.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
