package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanprover/elan/pkg/release"
)

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"bin/lean":      "#!/bin/sh\necho hi\n",
		"share/doc.txt": "hello",
	})

	destDir := filepath.Join(dir, "dest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(release.FormatTarGz, archivePath, destDir); err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "bin/lean"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(data) != "#!/bin/sh\necho hi\n" {
		t.Errorf("extracted content mismatch: %q", data)
	}
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	writeZip(t, archivePath, map[string]string{"bin/lake": "lake-binary"})

	destDir := filepath.Join(dir, "dest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(release.FormatZip, archivePath, destDir); err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "bin/lake"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(data) != "lake-binary" {
		t.Errorf("extracted content mismatch: %q", data)
	}
}

func TestExtractTarGzRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archivePath, map[string]string{"../../etc/passwd": "pwned"})

	destDir := filepath.Join(dir, "dest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(release.FormatTarGz, archivePath, destDir); err == nil {
		t.Fatal("Extract() should reject a path-traversal entry")
	}
}

func TestExtractZipRejectsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	writeZip(t, archivePath, map[string]string{"/etc/passwd": "pwned"})

	destDir := filepath.Join(dir, "dest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Extract(release.FormatZip, archivePath, destDir); err == nil {
		t.Fatal("Extract() should reject an absolute-path entry")
	}
}

func TestSafeJoinRejectsTraversal(t *testing.T) {
	if _, err := safeJoin("/dest", "../escape"); err == nil {
		t.Error("safeJoin should reject ..")
	}
	if _, err := safeJoin("/dest", "/etc/passwd"); err == nil {
		t.Error("safeJoin should reject absolute paths")
	}
	if got, err := safeJoin("/dest", "bin/lean"); err != nil || got != "/dest/bin/lean" {
		t.Errorf("safeJoin(good path) = (%q, %v)", got, err)
	}
}
