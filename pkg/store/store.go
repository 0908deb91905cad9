// Package store defines elan's on-disk layout: the home directory
// conventions for toolchains, downloads, settings, and shims.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths holds the filesystem paths that make up an elan home directory.
type Paths struct {
	// Home is the store root ($ELAN_HOME, default $HOME/.elan).
	Home string
	// BinDir holds shims plus the manager binary itself.
	BinDir string
	// ToolchainsDir holds installed toolchains, one subdirectory per identity.
	ToolchainsDir string
	// UpdateHashesDir holds opaque update tokens keyed by identity.
	UpdateHashesDir string
	// DownloadsDir is the content-addressed archive cache.
	DownloadsDir string
	// TmpDir is the staging directory for downloads and extraction.
	TmpDir string
	// SettingsFile is the settings store (see pkg/settings).
	SettingsFile string
	// EnvFile and EnvPS1File are the shell snippets exporting PATH and home.
	EnvFile    string
	EnvPS1File string
}

// DefaultHome returns $ELAN_HOME if set, otherwise $HOME/.elan.
func DefaultHome() (string, error) {
	if home := os.Getenv("ELAN_HOME"); home != "" {
		return ExpandPath(home), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".elan"), nil
}

// NewPaths builds a Paths rooted at home. Pass "" to use DefaultHome.
func NewPaths(home string) (*Paths, error) {
	if home == "" {
		var err error
		home, err = DefaultHome()
		if err != nil {
			return nil, err
		}
	}
	home = ExpandPath(home)
	return &Paths{
		Home:            home,
		BinDir:          filepath.Join(home, "bin"),
		ToolchainsDir:   filepath.Join(home, "toolchains"),
		UpdateHashesDir: filepath.Join(home, "update-hashes"),
		DownloadsDir:    filepath.Join(home, "downloads"),
		TmpDir:          filepath.Join(home, "tmp"),
		SettingsFile:    filepath.Join(home, "settings.yaml"),
		EnvFile:         filepath.Join(home, "env"),
		EnvPS1File:      filepath.Join(home, "env.ps1"),
	}, nil
}

// ToolchainDir returns the installed-toolchain directory for identity.
func (p *Paths) ToolchainDir(identity string) string {
	return filepath.Join(p.ToolchainsDir, identity)
}

// ToolchainLockFile returns the per-identity advisory lock path.
func (p *Paths) ToolchainLockFile(identity string) string {
	return filepath.Join(p.ToolchainsDir, identity+".lock")
}

// UpdateHashFile returns the update-token path for identity.
func (p *Paths) UpdateHashFile(identity string) string {
	return filepath.Join(p.UpdateHashesDir, identity)
}

// SettingsLockFile is the coarse advisory lock guarding settings mutation.
func (p *Paths) SettingsLockFile() string {
	return filepath.Join(p.Home, "settings.lock")
}

// EnsureLayout creates every directory in the store layout. It is
// idempotent and safe to call on every startup.
func (p *Paths) EnsureLayout() error {
	for _, dir := range []string{p.BinDir, p.ToolchainsDir, p.UpdateHashesDir, p.DownloadsDir, p.TmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// PruneTmp removes everything under TmpDir. Spec requires tmp/ be pruned
// on start: partial downloads and staged extractions left by a killed
// process are garbage once a new process starts.
func (p *Paths) PruneTmp() error {
	entries, err := os.ReadDir(p.TmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", p.TmpDir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(p.TmpDir, e.Name())); err != nil {
			return fmt.Errorf("pruning %s: %w", e.Name(), err)
		}
	}
	return nil
}

// NewStagingDir creates and returns a fresh, uniquely named subdirectory of
// TmpDir, so concurrent installs of distinct identities never share a
// staging path.
func (p *Paths) NewStagingDir(tag string) (string, error) {
	dir, err := os.MkdirTemp(p.TmpDir, sanitizeTag(tag)+"-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

func sanitizeTag(tag string) string {
	tag = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, tag)
	if tag == "" {
		return "staging"
	}
	return tag
}

// ExpandPath expands a leading ~ to the user's home directory. Only ~/...
// and bare ~ are supported; ~user syntax is not handled.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
