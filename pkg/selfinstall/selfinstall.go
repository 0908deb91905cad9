// Package selfinstall implements elan's bootstrap install, self-update, and
// self-uninstall: the operations that only make sense for the manager's
// own binary rather than a proxied toolchain tool.
package selfinstall

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/leanprover/elan/pkg/elanerr"
	"github.com/leanprover/elan/pkg/proxy"
	"github.com/leanprover/elan/pkg/store"
)

// defaultUpdateSlug is the GitHub "owner/repo" queried for manager releases
// when ELAN_UPDATE_ROOT and settings.SelfUpdateURL are both unset.
const defaultUpdateSlug = "leanprover/elan"

// InstallOptions configures a bootstrap install.
type InstallOptions struct {
	// ModifyPath lists shell profile files to append a `source .../env`
	// line to. Empty means "don't touch any profile".
	ModifyPath []string
	// PowerShellProfile, if non-empty, gets the PowerShell equivalent
	// appended.
	PowerShellProfile string
}

// Install creates the store layout, copies the running executable to
// bin/elan plus a real-copy shim per proxied tool name, and writes the
// env/env.ps1 snippets. It does not install an initial toolchain; callers
// compose that via the registry separately so this package stays free of
// a release-resolver dependency.
func Install(paths *store.Paths, opts InstallOptions) error {
	if err := paths.EnsureLayout(); err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating running executable: %w", err)
	}

	managerPath := filepath.Join(paths.BinDir, managerBinaryName())
	if err := copyExecutable(self, managerPath); err != nil {
		return fmt.Errorf("installing manager binary: %w", err)
	}

	names := make([]string, 0, len(proxy.ProxiedTools))
	for name := range proxy.ProxiedTools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, tool := range names {
		shimPath := filepath.Join(paths.BinDir, shimName(tool))
		if err := copyExecutable(self, shimPath); err != nil {
			return fmt.Errorf("installing shim %s: %w", tool, err)
		}
	}

	if err := writeEnvFiles(paths); err != nil {
		return err
	}

	for _, profile := range opts.ModifyPath {
		if err := appendSourceLine(profile, paths.EnvFile, false); err != nil {
			return fmt.Errorf("updating profile %s: %w", profile, err)
		}
	}
	if opts.PowerShellProfile != "" {
		if err := appendSourceLine(opts.PowerShellProfile, paths.EnvPS1File, true); err != nil {
			return fmt.Errorf("updating PowerShell profile: %w", err)
		}
	}

	return nil
}

func managerBinaryName() string {
	if runtime.GOOS == "windows" {
		return "elan.exe"
	}
	return "elan"
}

func shimName(tool string) string {
	if runtime.GOOS == "windows" {
		return tool + ".exe"
	}
	return tool
}

// copyExecutable writes a byte-identical, independently executable copy of
// src at dst: shims must be real copies rather than symlinks/hardlinks so
// that argv[0] inspection at dispatch time sees the tool's own name
// (spec.md §8: "each shim is a byte-identical copy of the manager binary").
func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".new"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func writeEnvFiles(paths *store.Paths) error {
	envSh := fmt.Sprintf(
		"#!/bin/sh\n"+
			"export ELAN_HOME=\"%s\"\n"+
			"case \":${PATH}:\" in\n"+
			"  *:\"%s\":*) ;;\n"+
			"  *) export PATH=\"%s:${PATH}\" ;;\n"+
			"esac\n",
		paths.Home, paths.BinDir, paths.BinDir,
	)
	if err := os.WriteFile(paths.EnvFile, []byte(envSh), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", paths.EnvFile, err)
	}

	envPS1 := fmt.Sprintf(
		"$env:ELAN_HOME = \"%s\"\n"+
			"if ($env:PATH -notlike \"*%s*\") {\n"+
			"    $env:PATH = \"%s;$env:PATH\"\n"+
			"}\n",
		paths.Home, paths.BinDir, paths.BinDir,
	)
	if err := os.WriteFile(paths.EnvPS1File, []byte(envPS1), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", paths.EnvPS1File, err)
	}
	return nil
}

// appendSourceLine appends a source line for envFile to profile, unless an
// identical line is already present.
func appendSourceLine(profile, envFile string, powershell bool) error {
	line := fmt.Sprintf(". \"%s\"\n", envFile)
	if !powershell {
		line = fmt.Sprintf("source \"%s\"\n", envFile)
	}

	existing, err := os.ReadFile(profile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if strings.Contains(string(existing), strings.TrimSpace(line)) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(profile), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(profile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString("\n" + line)
	return err
}

// Uninstall removes the store, shims included, and preserves linked-toolchain
// source directories (which live outside the store and are never touched).
// Profile lines appended by Install are left in place; neither this function
// nor the CLI's `self uninstall` removes them.
func Uninstall(paths *store.Paths) error {
	if err := os.RemoveAll(paths.Home); err != nil {
		return &elanerr.IOError{Path: paths.Home, Cause: err}
	}
	return nil
}

// newUpdater builds a go-selfupdate Updater, pointing its GitHub source at
// apiURL (an Enterprise-style API/upload host) when apiURL is non-empty, and
// at github.com's defaults otherwise.
func newUpdater(apiURL string) (*selfupdate.Updater, error) {
	if apiURL == "" {
		return selfupdate.NewUpdater(selfupdate.Config{})
	}
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{
		BaseURL:   apiURL,
		UploadURL: apiURL,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring GitHub source for %s: %w", apiURL, err)
	}
	return selfupdate.NewUpdater(selfupdate.Config{Source: source})
}

// UpdateCheck reports whether a newer manager release is available without
// installing it.
type UpdateCheck struct {
	Available    bool
	Version      string
	PublishedAt  string
	ReleaseNotes string
}

// CheckForUpdate queries slug's GitHub releases for a version newer than
// currentVersion. slug defaults to defaultUpdateSlug when empty. apiURL, if
// non-empty, points the updater at a GitHub Enterprise-style API/upload host
// instead of github.com (ELAN_UPDATE_ROOT / settings.SelfUpdateURL).
func CheckForUpdate(ctx context.Context, slug, currentVersion, apiURL string) (UpdateCheck, error) {
	if slug == "" {
		slug = defaultUpdateSlug
	}
	updater, err := newUpdater(apiURL)
	if err != nil {
		return UpdateCheck{}, fmt.Errorf("creating updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(slug))
	if err != nil {
		return UpdateCheck{}, fmt.Errorf("detecting latest release: %w", err)
	}
	if !found {
		return UpdateCheck{}, fmt.Errorf("no release found for %s", slug)
	}
	if !latest.GreaterThan(currentVersion) {
		return UpdateCheck{Available: false, Version: currentVersion}, nil
	}
	return UpdateCheck{
		Available:    true,
		Version:      latest.Version(),
		PublishedAt:  latest.PublishedAt.String(),
		ReleaseNotes: latest.ReleaseNotes,
	}, nil
}

// SelfUpdate replaces the running executable with the latest release of
// slug, via go-selfupdate's own rename-then-replace dance (on Windows it
// schedules the swap for next boot if the current binary is locked). apiURL
// carries the same GitHub Enterprise override as CheckForUpdate.
func SelfUpdate(ctx context.Context, slug, currentVersion, apiURL string) (UpdateCheck, error) {
	if slug == "" {
		slug = defaultUpdateSlug
	}
	updater, err := newUpdater(apiURL)
	if err != nil {
		return UpdateCheck{}, fmt.Errorf("creating updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(slug))
	if err != nil {
		return UpdateCheck{}, fmt.Errorf("detecting latest release: %w", err)
	}
	if !found {
		return UpdateCheck{}, fmt.Errorf("no release found for %s", slug)
	}
	if !latest.GreaterThan(currentVersion) {
		return UpdateCheck{Available: false, Version: currentVersion}, nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return UpdateCheck{}, fmt.Errorf("locating executable path: %w", err)
	}
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return UpdateCheck{}, fmt.Errorf("update failed: %w", err)
	}

	return UpdateCheck{
		Available:    true,
		Version:      latest.Version(),
		PublishedAt:  latest.PublishedAt.String(),
		ReleaseNotes: latest.ReleaseNotes,
	}, nil
}
