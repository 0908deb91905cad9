package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/download"
	"github.com/leanprover/elan/pkg/release"
	"github.com/leanprover/elan/pkg/settings"
	"github.com/leanprover/elan/pkg/store"
	"github.com/leanprover/elan/pkg/telemetry"
)

func tarGzWithBin(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	content := "#!/bin/sh\necho lean\n"
	if err := tw.WriteHeader(&tar.Header{Name: "bin/lean", Mode: 0o755, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestRegistry(t *testing.T, assetBody []byte) (*Registry, *store.Paths) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(assetBody)
	}))
	t.Cleanup(srv.Close)

	home := t.TempDir()
	paths, err := store.NewPaths(home)
	if err != nil {
		t.Fatalf("NewPaths() error = %v", err)
	}
	if err := paths.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout() error = %v", err)
	}

	r := &Registry{
		Paths:      paths,
		Downloader: download.NewDownloader(),
		Sink:       telemetry.NopSink{},
	}
	r.resolve = func(ctx context.Context, d descriptor.Descriptor) (release.Metadata, descriptor.Descriptor, error) {
		return release.Metadata{
			AssetURL:    srv.URL,
			AssetName:   "lean-4.9.0-linux.tar.gz",
			Format:      release.FormatTarGz,
			ReleaseTag:  "v4.9.0",
			UpdateToken: "etag-1",
		}, d, nil
	}
	return r, paths
}

func TestInstallIsIdempotent(t *testing.T) {
	r, paths := newTestRegistry(t, tarGzWithBin(t))
	ctx := context.Background()

	id1, err := r.Install(ctx, descriptor.Versioned("4.9.0"), "leanprover/lean4")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if id1 != "4.9.0" {
		t.Errorf("identity = %q, want 4.9.0", id1)
	}

	binPath := filepath.Join(paths.ToolchainDir(id1), "bin", "lean")
	if _, err := os.Stat(binPath); err != nil {
		t.Fatalf("expected extracted binary at %s: %v", binPath, err)
	}

	id2, err := r.Install(ctx, descriptor.Versioned("4.9.0"), "leanprover/lean4")
	if err != nil {
		t.Fatalf("second Install() error = %v", err)
	}
	if id2 != id1 {
		t.Errorf("second install identity = %q, want %q", id2, id1)
	}
}

func TestUninstallClearsDefault(t *testing.T) {
	r, _ := newTestRegistry(t, tarGzWithBin(t))
	ctx := context.Background()

	id, err := r.Install(ctx, descriptor.Versioned("4.9.0"), "leanprover/lean4")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	s := settings.Default()
	s.DefaultToolchain = id

	if err := r.Uninstall(ctx, s, id); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if s.DefaultToolchain != "" {
		t.Errorf("DefaultToolchain = %q, want empty after uninstall", s.DefaultToolchain)
	}

	if err := r.Uninstall(ctx, s, id); err == nil {
		t.Error("Uninstall() of an already-removed identity should fail")
	}
}

func TestLinkAndUnlink(t *testing.T) {
	r, _ := newTestRegistry(t, tarGzWithBin(t))
	s := settings.Default()

	linkDir := t.TempDir()
	if err := r.Link(s, "dev", linkDir); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if !s.IsLinked("dev") {
		t.Error("expected dev to be linked")
	}

	if err := r.SetDefault(s, "dev"); err != nil {
		t.Fatalf("SetDefault() error = %v", err)
	}

	if err := r.Unlink(s, "dev"); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}
	if s.DefaultToolchain != "" {
		t.Errorf("DefaultToolchain = %q, want empty after unlink", s.DefaultToolchain)
	}
}

func TestSetDefaultRejectsUnknown(t *testing.T) {
	r, _ := newTestRegistry(t, tarGzWithBin(t))
	s := settings.Default()

	if err := r.SetDefault(s, "nope"); err == nil {
		t.Error("SetDefault() on an unknown identity should fail")
	}
}

func TestListMarksDefault(t *testing.T) {
	r, _ := newTestRegistry(t, tarGzWithBin(t))
	ctx := context.Background()
	s := settings.Default()

	id, err := r.Install(ctx, descriptor.Versioned("4.9.0"), "leanprover/lean4")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	s.DefaultToolchain = id

	entries, err := r.List(s)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].IsDefault {
		t.Errorf("entries = %+v, want one default entry", entries)
	}
}
