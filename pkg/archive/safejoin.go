package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxExtractFileSize is the per-file size limit during extraction (512 MB;
// Lean toolchain trees, including LLVM-derived binaries, run larger than
// the 100 MB the teacher's plugin archives needed).
const maxExtractFileSize = 512 << 20

// safeJoin joins destDir and name, rejecting path traversal (".." segments
// and absolute paths). The check is lexical; symlink entries' targets are
// checked separately by extractSymlink. Shared by all three archive formats
// so the guard is written once.
func safeJoin(destDir, name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}

	target := filepath.Join(destDir, clean)
	cleanDest := filepath.Clean(destDir)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes destination: %s", name)
	}
	return target, nil
}

// extractSymlink creates a symlink at target pointing at linkname, rejecting
// any linkname that would resolve outside destDir (spec.md §4.5: only
// traversal-escaping symlinks are rejected, in-root ones are extracted).
// linkname is resolved the way the filesystem would resolve it: relative to
// target's own directory, never to destDir itself.
func extractSymlink(destDir, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("symlink %s has absolute target %s", target, linkname)
	}

	resolved := filepath.Clean(filepath.Join(filepath.Dir(target), linkname))
	cleanDest := filepath.Clean(destDir)
	if resolved != cleanDest && !strings.HasPrefix(resolved, cleanDest+string(filepath.Separator)) {
		return fmt.Errorf("symlink %s escapes destination via target %s", target, linkname)
	}

	_ = os.Remove(target)
	return os.Symlink(linkname, target)
}

// applyModeAndTime preserves file mode and mtime from the archive on
// platforms that support it, per spec.md §4.5.
func applyModeAndTime(path string, mode os.FileMode, mtime time.Time) {
	if mode != 0 {
		_ = os.Chmod(path, mode)
	}
	if !mtime.IsZero() {
		_ = os.Chtimes(path, mtime, mtime)
	}
}
