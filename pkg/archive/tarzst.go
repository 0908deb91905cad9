package archive

import (
	"archive/tar"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// extractTarZst extracts a zstd-compressed tar archive to destDir. zstd is
// the preferred format for Lean release assets (spec.md §4.3 ranks zstd
// over gzip over zip), decoded with klauspost/compress -- the ecosystem's
// standard zstd implementation for Go.
func extractTarZst(srcPath, destDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	return extractTarEntries(tar.NewReader(zr), destDir)
}
