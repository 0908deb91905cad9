// Package cmd implements the elan CLI commands using Cobra.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/registry"
	"github.com/leanprover/elan/pkg/release"
	"github.com/leanprover/elan/pkg/settings"
	"github.com/leanprover/elan/pkg/store"
	"github.com/leanprover/elan/pkg/telemetry"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"

	// elanHome overrides the store root; empty means store.DefaultHome().
	elanHome string

	verbose          bool
	quiet            bool
	assumeYes        bool
	noModifyPath     bool
	defaultToolchain string
)

// SetBuildInfo sets the build metadata used by `elan version` and self update.
func SetBuildInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = version
}

var rootCmd = &cobra.Command{
	Use:   "elan",
	Short: "The Lean toolchain installer",
	Long: `elan installs, selects, updates, and invokes multiple versions of the
Lean theorem prover (and its companion tools lake, leanc, leanmake,
leanchecker, leanpkg).

It resolves which toolchain is active for the current directory using
lean-toolchain files, leanpkg.toml files, directory overrides, and a
configured default, installing toolchains on demand from GitHub releases.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&elanHome, "elan-home", "", "override the store root (default: $ELAN_HOME or ~/.elan)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "print diagnostic detail")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "assume yes to prompts")
	rootCmd.PersistentFlags().BoolVar(&noModifyPath, "no-modify-path", false, "don't touch shell profile files")
	rootCmd.PersistentFlags().StringVar(&defaultToolchain, "default-toolchain", "", "toolchain to install and select as default on first run")
}

// newPaths builds the store.Paths for this invocation, honouring --elan-home.
func newPaths() (*store.Paths, error) {
	return store.NewPaths(elanHome)
}

// newSink builds the telemetry sink for this invocation, wrapping
// cmd.OutOrStdout(), reporting download progress at 1% granularity instead
// of 10% when --verbose is set, and applying the --quiet filter.
func newSink(cmd *cobra.Command) telemetry.Sink {
	var writer *telemetry.WriterSink
	if verbose {
		writer = telemetry.NewVerboseWriterSink(cmd.OutOrStdout())
	} else {
		writer = telemetry.NewWriterSink(cmd.OutOrStdout())
	}
	return telemetry.FilterSink{
		Inner: writer,
		Quiet: quiet,
	}
}

// newResolver builds a release.Resolver against s's configured default
// origin.
func newResolver(s *settings.Settings) *release.Resolver {
	return release.NewResolver(nil, s.DefaultOrigin)
}

// newRegistry builds a registry.Registry wired to paths, s, and a fresh
// resolver.
func newRegistry(paths *store.Paths, s *settings.Settings, sink telemetry.Sink) *registry.Registry {
	return registry.New(paths, newResolver(s), sink)
}

// loadSettings reads settings.yaml for read-only commands (show, list,
// which). Commands that mutate settings use settings.WithLock instead.
func loadSettings(paths *store.Paths) (*settings.Settings, error) {
	return settings.Load(paths.SettingsFile)
}
