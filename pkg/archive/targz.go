package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// extractTarGz extracts a gzip-compressed tar archive to destDir. Directly
// grounded on the teacher's own pkg/oci/pull.go extractTarGz, generalized
// to share safeJoin/applyModeAndTime with the zip and tar.zst variants.
func extractTarGz(srcPath, destDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	return extractTarEntries(tar.NewReader(gzr), destDir)
}

// extractTarEntries is shared between the gzip and zstd tar variants; only
// the decompression layer differs between them.
func extractTarEntries(tr *tar.Reader, destDir string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory for %s: %w", target, err)
			}

			mode := os.FileMode(header.Mode) & 0o777
			if mode == 0 {
				mode = 0o644
			}

			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return fmt.Errorf("creating file %s: %w", target, err)
			}

			n, err := io.Copy(out, io.LimitReader(tr, maxExtractFileSize+1))
			if closeErr := out.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("extracting file %s: %w", target, err)
			}
			if n > maxExtractFileSize {
				return fmt.Errorf("file %s exceeds max size (%d bytes)", header.Name, maxExtractFileSize)
			}

			applyModeAndTime(target, mode, header.ModTime)

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory for %s: %w", target, err)
			}
			if err := extractSymlink(destDir, target, header.Linkname); err != nil {
				return err
			}

		case tar.TypeLink:
			source, err := safeJoin(destDir, header.Linkname)
			if err != nil {
				return fmt.Errorf("hardlink target for %s: %w", header.Name, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory for %s: %w", target, err)
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("linking %s: %w", target, err)
			}

		default:
			// Skip other special file types.
		}
	}
}
