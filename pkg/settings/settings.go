// Package settings persists elan's settings.yaml: the default toolchain,
// directory overrides, linked toolchains, and self-update configuration.
// Reads tolerate unknown fields for forward compatibility; writes use the
// teacher's atomic write-sibling-then-rename discipline (see
// pkg/secret.Store.Save in the teacher repo).
package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leanprover/elan/pkg/lock"
	"github.com/leanprover/elan/pkg/store"
	"github.com/leanprover/elan/pkg/telemetry"
)

// settingsVersion guards future format changes; unknown fields are
// tolerated regardless (yaml.v3 ignores fields absent from the struct).
const settingsVersion = 1

// Settings is the persisted elan configuration.
type Settings struct {
	Version int `yaml:"version"`

	// DefaultToolchain is the identity used when no override applies. Must
	// be installed or a known linked name (data model invariant 4).
	DefaultToolchain string `yaml:"default_toolchain,omitempty"`

	// DefaultOrigin is the GitHub "owner/repo" used for unqualified
	// descriptors (Symbolic/Versioned). Never guessed, per spec.md §9's
	// Open Question: the historical Lean-3-vs-Lean-4 heuristic is
	// replaced with this explicit setting (DESIGN.md O1).
	DefaultOrigin string `yaml:"default_origin"`

	// Overrides maps a normalised absolute directory path to the textual
	// descriptor active for that directory and its descendants.
	Overrides map[string]string `yaml:"overrides,omitempty"`

	// LinkedToolchains maps a linked name to its arbitrary local directory.
	LinkedToolchains map[string]string `yaml:"linked_toolchains,omitempty"`

	// Telemetry is persisted but not read by any code path: progress and
	// notification events are emitted whatever its value (only --quiet
	// filters them).
	Telemetry bool `yaml:"telemetry"`

	// AutoSelfUpdate is persisted but not read by any code path: elan checks
	// for its own updates only when `elan self update` is run.
	AutoSelfUpdate bool `yaml:"auto_self_update"`

	// SelfUpdateURL overrides the release endpoint used for `self update`
	// (mirrors ELAN_UPDATE_ROOT when set via environment instead).
	SelfUpdateURL string `yaml:"self_update_url,omitempty"`

	// LastSelfUpdateCheck is an RFC3339 timestamp, stored as a plain string
	// so unknown future fields format identically; parsed lazily by callers
	// that care.
	LastSelfUpdateCheck string `yaml:"last_self_update_check,omitempty"`

	// DefaultHostTriple is ignored; kept only for forward compatibility
	// with settings files written by a version that used it (spec.md §6).
	DefaultHostTriple string `yaml:"default_host_triple,omitempty"`
}

// Default returns a fresh Settings with the documented default origin.
func Default() *Settings {
	return &Settings{
		Version:       settingsVersion,
		DefaultOrigin: "leanprover/lean4",
		Telemetry:     true,
	}
}

// IsLinked implements descriptor.KnownLinks.
func (s *Settings) IsLinked(name string) bool {
	_, ok := s.LinkedToolchains[name]
	return ok
}

// Load reads settings.yaml, returning Default() if the file does not exist.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if s.Overrides == nil {
		s.Overrides = map[string]string{}
	}
	if s.LinkedToolchains == nil {
		s.LinkedToolchains = map[string]string{}
	}
	return s, nil
}

// Save writes settings to path atomically: write a sibling ".new" file,
// fsync it, then rename over the original.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp := path + ".new"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// WithLock runs fn while holding the coarse store-level exclusive lock,
// reloading settings under the lock, and saving the (possibly mutated)
// result before releasing it. This is the only supported way to mutate
// settings (spec.md §5: "settings are mutated only under the coarse
// lock").
func WithLock(ctx context.Context, paths *store.Paths, sink telemetry.Sink, fn func(*Settings) error) error {
	l, err := lock.AcquireExclusive(ctx, paths.SettingsLockFile(), func() {
		if sink != nil {
			sink.Info(telemetry.Info{Msg: "waiting for another elan process to finish..."})
		}
	})
	if err != nil {
		return err
	}
	defer l.Unlock()

	s, err := Load(paths.SettingsFile)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return s.Save(paths.SettingsFile)
}

// NormalizeDir resolves dir to an absolute, symlink-resolved path, the form
// override keys are stored and looked up under (spec.md §3: override paths
// are "normalised (absolute, symlinks resolved)"), so a relative --path
// argument or a symlinked working directory can't produce a mismatched key.
// If dir does not exist yet (EvalSymlinks needs a real path), it falls back
// to the plain absolute path.
func NormalizeDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// ClosestOverride walks dir up to the filesystem root and returns the
// descriptor text of the closest ancestor with an override record, and
// that ancestor's path, implementing the "nested directory matches the
// closest ancestor" invariant (data model invariant 3).
func (s *Settings) ClosestOverride(dir string) (descText, matchedDir string, ok bool) {
	dir = cleanOverrideKey(dir)
	for {
		if text, present := s.Overrides[dir]; present {
			return text, dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", false
		}
		dir = parent
	}
}

// SetOverride records descText as the override for dir, normalised the same
// way ClosestOverride normalises its lookups.
func (s *Settings) SetOverride(dir, descText string) {
	if s.Overrides == nil {
		s.Overrides = map[string]string{}
	}
	s.Overrides[cleanOverrideKey(dir)] = descText
}

// UnsetOverride removes the override for dir, reporting whether one existed.
func (s *Settings) UnsetOverride(dir string) bool {
	dir = cleanOverrideKey(dir)
	if _, ok := s.Overrides[dir]; !ok {
		return false
	}
	delete(s.Overrides, dir)
	return true
}

// cleanOverrideKey normalises dir to an absolute, symlink-resolved path
// (NormalizeDir), falling back to a plain Clean if that fails (only when no
// absolute path can be computed; a dir that doesn't exist yet already gets
// its plain absolute path from NormalizeDir), so every Overrides key is keyed consistently
// regardless of which caller produced the path.
func cleanOverrideKey(dir string) string {
	if normalized, err := NormalizeDir(dir); err == nil {
		return normalized
	}
	return filepath.Clean(dir)
}

// OverrideList returns override records sorted by directory path, for
// deterministic `elan override list` output.
func (s *Settings) OverrideList() []OverrideRecord {
	dirs := make([]string, 0, len(s.Overrides))
	for d := range s.Overrides {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	records := make([]OverrideRecord, 0, len(dirs))
	for _, d := range dirs {
		records = append(records, OverrideRecord{Directory: d, Descriptor: s.Overrides[d]})
	}
	return records
}

// OverrideRecord pairs a directory with its override descriptor text.
type OverrideRecord struct {
	Directory  string
	Descriptor string
}
