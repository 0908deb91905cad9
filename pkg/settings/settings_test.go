package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leanprover/elan/pkg/store"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.DefaultOrigin != "leanprover/lean4" {
		t.Errorf("DefaultOrigin = %q, want leanprover/lean4", s.DefaultOrigin)
	}
	if !s.Telemetry {
		t.Error("Telemetry should default to true")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Default()
	s.DefaultToolchain = "leanprover/lean4:stable"
	s.SetOverride("/home/user/proj", "leanprover/lean4:4.9.0")

	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultToolchain != s.DefaultToolchain {
		t.Errorf("DefaultToolchain = %q, want %q", loaded.DefaultToolchain, s.DefaultToolchain)
	}
	if loaded.Overrides["/home/user/proj"] != "leanprover/lean4:4.9.0" {
		t.Errorf("override not round-tripped: %+v", loaded.Overrides)
	}
}

func TestClosestOverrideMatchesAncestor(t *testing.T) {
	s := Default()
	s.SetOverride("/home/user/proj", "leanprover/lean4:4.9.0")

	text, matched, ok := s.ClosestOverride("/home/user/proj/src/nested")
	if !ok {
		t.Fatal("expected an override match")
	}
	if text != "leanprover/lean4:4.9.0" || matched != "/home/user/proj" {
		t.Errorf("got (%q, %q), want (leanprover/lean4:4.9.0, /home/user/proj)", text, matched)
	}

	if _, _, ok := s.ClosestOverride("/unrelated/dir"); ok {
		t.Error("expected no override match for unrelated directory")
	}
}

func TestUnsetOverride(t *testing.T) {
	s := Default()
	s.SetOverride("/a/b", "x:y")
	if !s.UnsetOverride("/a/b") {
		t.Error("UnsetOverride should report true for an existing override")
	}
	if s.UnsetOverride("/a/b") {
		t.Error("UnsetOverride should report false the second time")
	}
}

func TestOverrideListSorted(t *testing.T) {
	s := Default()
	s.SetOverride("/z", "z:1")
	s.SetOverride("/a", "a:1")
	s.SetOverride("/m", "m:1")

	records := s.OverrideList()
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	want := []string{"/a", "/m", "/z"}
	for i, r := range records {
		if r.Directory != want[i] {
			t.Errorf("records[%d].Directory = %q, want %q", i, r.Directory, want[i])
		}
	}
}

func TestWithLockPersistsMutation(t *testing.T) {
	home := t.TempDir()
	paths, err := store.NewPaths(home)
	if err != nil {
		t.Fatalf("NewPaths() error = %v", err)
	}
	if err := paths.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout() error = %v", err)
	}

	ctx := context.Background()
	err = WithLock(ctx, paths, nil, func(s *Settings) error {
		s.DefaultToolchain = "leanprover/lean4:stable"
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}

	loaded, err := Load(paths.SettingsFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultToolchain != "leanprover/lean4:stable" {
		t.Errorf("DefaultToolchain = %q, want leanprover/lean4:stable", loaded.DefaultToolchain)
	}
}

func TestIsLinked(t *testing.T) {
	s := Default()
	s.LinkedToolchains = map[string]string{"dev": "/home/user/lean4"}
	if !s.IsLinked("dev") {
		t.Error("IsLinked(dev) = false, want true")
	}
	if s.IsLinked("missing") {
		t.Error("IsLinked(missing) = true, want false")
	}
}
