package release

import (
	"os"
	"runtime"
	"strings"
)

// PlatformTriple identifies the OS/architecture/libc combination used to
// match release assets. Libc only matters on Linux, where Lean toolchain
// builds are published separately for glibc and musl.
type PlatformTriple struct {
	OS   string // "linux", "darwin", "windows"
	Arch string // "amd64", "arm64"
	Libc string // "gnu", "musl", "" (non-Linux)
}

// Detect returns the PlatformTriple for the running process.
func Detect() PlatformTriple {
	t := PlatformTriple{OS: runtime.GOOS, Arch: runtime.GOARCH}
	if t.OS == "linux" {
		t.Libc = detectLibc()
	}
	return t
}

// detectLibc probes for musl by checking for its dynamic loader; glibc
// systems don't have one at this path.
func detectLibc() string {
	matches, _ := filepathGlob("/lib/ld-musl-*")
	if len(matches) > 0 {
		return "musl"
	}
	if _, err := os.Stat("/etc/alpine-release"); err == nil {
		return "musl"
	}
	return "gnu"
}

// Matches reports whether an asset name plausibly targets this platform.
// Matching is substring-based over the OS, architecture and libc components
// release tooling embeds in asset names (e.g.
// "lean-4.9.0-linux-x86_64.tar.zst", "lean-4.9.0-linux-x86_64-musl.tar.gz",
// "lean-4.9.0-darwin-aarch64.zip"). A name that carries no alias of t.Arch
// does not match, even if it names the right OS.
func (t PlatformTriple) Matches(assetName string) bool {
	name := strings.ToLower(assetName)

	osAliases := map[string][]string{
		"linux":   {"linux"},
		"darwin":  {"darwin", "macos", "osx"},
		"windows": {"windows", "win64", "win32"},
	}
	if !containsAny(name, osAliases[t.OS]) {
		return false
	}

	archAliases := map[string][]string{
		"amd64": {"x86_64", "amd64", "x64"},
		"arm64": {"aarch64", "arm64"},
	}
	if !containsAny(name, archAliases[t.Arch]) {
		return false
	}

	if t.OS == "linux" {
		wantsMusl := containsAny(name, []string{"musl"})
		if t.Libc == "musl" && !wantsMusl {
			// A glibc-only asset is still usable as a fallback match, but a
			// musl system prefers an explicit musl asset when one exists;
			// callers rank candidates and this just gates eligibility.
			return true
		}
		if t.Libc == "gnu" && wantsMusl {
			return false
		}
	}

	return true
}

func containsAny(s string, subs []string) bool {
	if len(subs) == 0 {
		return true
	}
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// filepathGlob is a thin indirection over filepath.Glob kept here (rather
// than imported directly in Detect) so tests can exercise detectLibc's
// logic without touching the real filesystem root.
func filepathGlob(pattern string) ([]string, error) {
	return globFunc(pattern)
}

var globFunc = defaultGlob
