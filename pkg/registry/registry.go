// Package registry implements elan's toolchain registry: install,
// uninstall, link, list, setDefault, and update, each serialised per
// identity by an on-disk advisory lock and de-duplicated in-process by
// singleflight so concurrent requests for the same identity within one
// process share a single install.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/leanprover/elan/pkg/archive"
	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/download"
	"github.com/leanprover/elan/pkg/elanerr"
	"github.com/leanprover/elan/pkg/lock"
	"github.com/leanprover/elan/pkg/release"
	"github.com/leanprover/elan/pkg/settings"
	"github.com/leanprover/elan/pkg/store"
	"github.com/leanprover/elan/pkg/telemetry"
)

// Entry describes one installed or linked toolchain for `list`.
type Entry struct {
	Identity  string
	Linked    bool
	LinkPath  string // set when Linked
	IsDefault bool
}

// Resolver is the subset of *release.Resolver that the registry depends on,
// kept as an interface so tests can substitute a fixed Metadata without
// talking to GitHub.
type Resolver interface {
	Resolve(ctx context.Context, d descriptor.Descriptor) (release.Metadata, descriptor.Descriptor, error)
}

// Registry drives the install/uninstall/link/list/setDefault/update
// operations against a store and a release resolver.
type Registry struct {
	Paths      *store.Paths
	Downloader *download.Downloader
	Sink       telemetry.Sink

	resolve func(ctx context.Context, d descriptor.Descriptor) (release.Metadata, descriptor.Descriptor, error)
	group   singleflight.Group
}

// New builds a Registry. sink may be nil, in which case events are dropped.
func New(paths *store.Paths, resolver Resolver, sink telemetry.Sink) *Registry {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Registry{
		Paths:      paths,
		Downloader: download.NewDownloader(),
		Sink:       sink,
		resolve:    resolver.Resolve,
	}
}

// Install resolves d, downloads and extracts its asset if not already
// present, and returns the resulting identity. Install is idempotent: a
// second call for an already-installed identity returns immediately.
func (r *Registry) Install(ctx context.Context, d descriptor.Descriptor, defaultOrigin string) (string, error) {
	if d.Kind == descriptor.KindLinked {
		return d.Name, nil
	}

	meta, resolved, err := r.resolve(ctx, d)
	if err != nil {
		return "", err
	}
	identity, err := descriptor.Identity(resolved, defaultOrigin)
	if err != nil {
		return "", err
	}

	v, err, _ := r.group.Do(identity, func() (any, error) {
		return r.installIdentity(ctx, identity, meta, false)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// EnsureInstalled returns the identity for d, installing it only if not
// already present on disk. Spec §5 requires readers (the proxy dispatcher,
// `elan run`) to take a shared lock rather than an installer's exclusive
// one: the already-installed path here takes a shared lock on the
// per-identity lock file, never touches the network, and lets concurrent
// invocations of the same toolchain proceed together. Only a cold cache
// falls through to the full resolve-and-install path in Install, which
// takes the exclusive lock.
func (r *Registry) EnsureInstalled(ctx context.Context, d descriptor.Descriptor, defaultOrigin string) (string, error) {
	if d.Kind == descriptor.KindLinked {
		return d.Name, nil
	}
	if d.Kind != descriptor.KindRemoteFile {
		if identity, err := descriptor.Identity(d, defaultOrigin); err == nil {
			installed, lockErr := r.isInstalledShared(ctx, identity)
			if lockErr != nil {
				return "", lockErr
			}
			if installed {
				return identity, nil
			}
		}
	}
	return r.Install(ctx, d, defaultOrigin)
}

// isInstalledShared reports whether identity is already present on disk,
// holding a shared lock for the duration of the check so it can't race a
// concurrent uninstall.
func (r *Registry) isInstalledShared(ctx context.Context, identity string) (bool, error) {
	l, err := lock.AcquireShared(ctx, r.Paths.ToolchainLockFile(identity), func() {
		r.Sink.Info(telemetry.Info{Msg: fmt.Sprintf("waiting for another process to finish installing %s...", identity)})
	})
	if err != nil {
		return false, err
	}
	defer l.Unlock()
	_, statErr := os.Stat(r.Paths.ToolchainDir(identity))
	return statErr == nil, nil
}

// installIdentity performs the locked install/reinstall. allowReplace, when
// true, permits overwriting an existing installation (used by Update).
func (r *Registry) installIdentity(ctx context.Context, identity string, meta release.Metadata, allowReplace bool) (string, error) {
	l, err := lock.AcquireExclusive(ctx, r.Paths.ToolchainLockFile(identity), func() {
		r.Sink.Info(telemetry.Info{Msg: fmt.Sprintf("waiting for another process to finish installing %s...", identity)})
	})
	if err != nil {
		return "", err
	}
	defer l.Unlock()

	destDir := r.Paths.ToolchainDir(identity)
	if _, statErr := os.Stat(destDir); statErr == nil {
		if !allowReplace {
			return identity, nil
		}
		if sameToken(r.Paths, identity, meta.UpdateToken) {
			return identity, nil
		}
	}

	r.Sink.Installing(telemetry.Installing{Identity: identity})

	cachePath, _, err := r.Downloader.Fetch(ctx, r.Paths, meta, r.Sink)
	if err != nil {
		return "", err
	}

	staging, err := r.Paths.NewStagingDir(identity)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	if err := archive.Extract(meta.Format, cachePath, staging); err != nil {
		return "", &elanerr.IntegrityFailed{What: identity, Cause: err}
	}

	if allowReplace {
		if err := os.RemoveAll(destDir); err != nil {
			return "", &elanerr.IOError{Path: destDir, Cause: err}
		}
	}
	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return "", &elanerr.IOError{Path: destDir, Cause: err}
	}
	if err := os.Rename(staging, destDir); err != nil {
		return "", &elanerr.IOError{Path: destDir, Cause: err}
	}

	if meta.UpdateToken != "" {
		_ = os.WriteFile(r.Paths.UpdateHashFile(identity), []byte(meta.UpdateToken), 0o644)
	}

	r.Sink.Installed(telemetry.Installed{Identity: identity})
	return identity, nil
}

func sameToken(paths *store.Paths, identity, token string) bool {
	if token == "" {
		return false
	}
	b, err := os.ReadFile(paths.UpdateHashFile(identity))
	return err == nil && string(b) == token
}

// Update re-resolves d and, if the resolved update token differs from the
// one recorded at install time, reinstalls over the existing directory.
func (r *Registry) Update(ctx context.Context, d descriptor.Descriptor, defaultOrigin string) (string, bool, error) {
	meta, resolved, err := r.resolve(ctx, d)
	if err != nil {
		return "", false, err
	}
	identity, err := descriptor.Identity(resolved, defaultOrigin)
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(r.Paths.ToolchainDir(identity)); os.IsNotExist(err) {
		return "", false, &elanerr.NotInstalled{Identity: identity}
	}

	if sameToken(r.Paths, identity, meta.UpdateToken) {
		return identity, false, nil
	}

	v, err, _ := r.group.Do("update:"+identity, func() (any, error) {
		return r.installIdentity(ctx, identity, meta, true)
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), true, nil
}

// Uninstall removes the toolchain directory for identity and clears it as
// the default if it was selected. Fails if identity names a linked
// toolchain (only Unlink removes those).
func (r *Registry) Uninstall(ctx context.Context, s *settings.Settings, identity string) error {
	if _, linked := s.LinkedToolchains[identity]; linked {
		return fmt.Errorf("%q is a linked toolchain; use 'elan toolchain unlink' instead", identity)
	}

	destDir := r.Paths.ToolchainDir(identity)
	if _, err := os.Stat(destDir); os.IsNotExist(err) {
		return &elanerr.NotInstalled{Identity: identity}
	}

	l, err := lock.AcquireExclusive(ctx, r.Paths.ToolchainLockFile(identity), nil)
	if err != nil {
		return err
	}
	defer l.Unlock()

	if err := os.RemoveAll(destDir); err != nil {
		return &elanerr.IOError{Path: destDir, Cause: err}
	}
	_ = os.Remove(r.Paths.UpdateHashFile(identity))
	_ = os.Remove(r.Paths.ToolchainLockFile(identity))

	if s.DefaultToolchain == identity {
		s.DefaultToolchain = ""
	}
	return nil
}

// Link registers name as a linked toolchain pointing at path. Linked
// toolchains are never downloaded or version-checked; their "bin" directory
// is taken to be path/bin.
func (r *Registry) Link(s *settings.Settings, name, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if s.LinkedToolchains == nil {
		s.LinkedToolchains = map[string]string{}
	}
	s.LinkedToolchains[name] = abs
	return nil
}

// Unlink removes name from the set of linked toolchains, clearing it as
// default if selected.
func (r *Registry) Unlink(s *settings.Settings, name string) error {
	if _, ok := s.LinkedToolchains[name]; !ok {
		return &elanerr.NotInstalled{Identity: name}
	}
	delete(s.LinkedToolchains, name)
	if s.DefaultToolchain == name {
		s.DefaultToolchain = ""
	}
	return nil
}

// SetDefault records identity as the default toolchain, failing
// NotInstalled if it names neither an installed nor a linked toolchain.
func (r *Registry) SetDefault(s *settings.Settings, identity string) error {
	if !r.isKnown(s, identity) {
		return &elanerr.NotInstalled{Identity: identity}
	}
	s.DefaultToolchain = identity
	return nil
}

func (r *Registry) isKnown(s *settings.Settings, identity string) bool {
	if s.IsLinked(identity) {
		return true
	}
	_, err := os.Stat(r.Paths.ToolchainDir(identity))
	return err == nil
}

// List enumerates installed and linked toolchains, sorted by identity, with
// IsDefault set on the entry matching s.DefaultToolchain.
func (r *Registry) List(s *settings.Settings) ([]Entry, error) {
	var entries []Entry

	dirEntries, err := os.ReadDir(r.Paths.ToolchainsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, &elanerr.IOError{Path: r.Paths.ToolchainsDir, Cause: err}
	}
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		entries = append(entries, Entry{Identity: de.Name()})
	}

	for name, path := range s.LinkedToolchains {
		entries = append(entries, Entry{Identity: name, Linked: true, LinkPath: path})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })

	for i := range entries {
		if entries[i].Identity == s.DefaultToolchain {
			entries[i].IsDefault = true
		}
	}
	return entries, nil
}

// BinDir returns the directory containing tool binaries for an installed
// or linked identity: toolchains/<identity>/bin for installed toolchains,
// or <linkPath>/bin for a linked one.
func (r *Registry) BinDir(s *settings.Settings, identity string) string {
	if path, ok := s.LinkedToolchains[identity]; ok {
		return filepath.Join(path, "bin")
	}
	return filepath.Join(r.Paths.ToolchainDir(identity), "bin")
}
