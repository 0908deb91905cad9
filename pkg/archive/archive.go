// Package archive extracts release archives (.zip, .tar.gz, .tar.zst) into
// a staging directory, preserving permissions and mtimes where the
// platform supports it, and guarding against path traversal.
package archive

import (
	"fmt"

	"github.com/leanprover/elan/pkg/release"
)

// Extract extracts the archive at srcPath (in the given format) beneath
// destDir, which must already exist. Entries escaping destDir via ".." or
// absolute paths are rejected. srcPath is opened directly rather than
// passed as a stream because zip's central directory requires random
// access (archive/zip.OpenReader).
func Extract(format release.ArchiveFormat, srcPath, destDir string) error {
	switch format {
	case release.FormatZip:
		return extractZip(srcPath, destDir)
	case release.FormatTarGz:
		return extractTarGz(srcPath, destDir)
	case release.FormatTarZst:
		return extractTarZst(srcPath, destDir)
	default:
		return fmt.Errorf("unsupported archive format")
	}
}
