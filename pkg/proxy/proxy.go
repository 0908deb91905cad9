// Package proxy implements the shim dispatcher: the same binary answers to
// many argv[0] names (lean, lake, leanc, leanmake, leanchecker, leanpkg,
// and the manager itself), each re-entering the resolved toolchain's own
// binary with the original arguments.
package proxy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/leanprover/elan/pkg/elanerr"
)

// ManagerNames are the argv[0] values that mean "run as the manager CLI"
// rather than proxying to a toolchain tool.
var ManagerNames = map[string]bool{
	"elan":      true,
	"elan-init": true,
}

// ProxiedTools are the toolchain binary names the shim knows how to dispatch.
var ProxiedTools = map[string]bool{
	"lean":        true,
	"lake":        true,
	"leanc":       true,
	"leanmake":    true,
	"leanchecker": true,
	"leanpkg":     true,
}

// ToolName returns the tool name argv[0] resolves to, stripping any
// platform executable suffix and directory components.
func ToolName(argv0 string) string {
	name := filepath.Base(argv0)
	name = strings.TrimSuffix(name, ".exe")
	return name
}

// SplitSelector strips an optional leading "+tag" from args, returning the
// selector text (without the leading "+") and the remaining arguments.
func SplitSelector(args []string) (selector string, rest []string) {
	if len(args) > 0 && strings.HasPrefix(args[0], "+") {
		return strings.TrimPrefix(args[0], "+"), args[1:]
	}
	return "", args
}

// Invocation describes a resolved proxy dispatch: which binary to exec, with
// which arguments and environment.
type Invocation struct {
	Path string
	Args []string // argv, including argv[0]
	Env  []string
}

// BuildInvocation locates tool under binDir and constructs the Invocation
// that Exec will run, re-prefixing PATH with binDir and clearing
// (DY)LD_LIBRARY_PATH so the toolchain's own shared libraries are found
// ahead of the host's.
func BuildInvocation(binDir, tool string, args []string) (Invocation, error) {
	target := filepath.Join(binDir, tool)
	if _, err := os.Stat(target); err != nil {
		if winTarget := target + ".exe"; fileExists(winTarget) {
			target = winTarget
		} else {
			return Invocation{}, &elanerr.ToolNotInToolchain{Tool: tool, Identity: filepath.Base(filepath.Dir(binDir))}
		}
	}

	env := os.Environ()
	env = setPath(env, binDir)
	env = unset(env, "LD_LIBRARY_PATH")
	env = unset(env, "DYLD_LIBRARY_PATH")

	return Invocation{
		Path: target,
		Args: append([]string{target}, args...),
		Env:  env,
	}, nil
}

func setPath(env []string, prefixDir string) []string {
	const prefix = "PATH="
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			current := strings.TrimPrefix(kv, prefix)
			out = append(out, prefix+prefixDir+string(os.PathListSeparator)+current)
			found = true
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, prefix+prefixDir)
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func unset(env []string, key string) []string {
	prefix := key + "="
	out := env[:0:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
