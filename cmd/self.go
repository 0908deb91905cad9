package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/selfinstall"
	"github.com/leanprover/elan/pkg/settings"
)

var selfCmd = &cobra.Command{
	Use:   "self",
	Short: "Manage the elan installation itself",
	// Bare `elan self` (as well as the elan-init bootstrap entry point in
	// main.go) bootstraps the install, per spec §4.9: "when launched under
	// the name elan-init or via the self subcommand".
	RunE: runSelfInstall,
}

var selfInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install elan: create the store, shims, and shell profile hooks",
	RunE:  runSelfInstall,
}

var selfUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update elan to the latest release",
	RunE:  runSelfUpdate,
}

var selfUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove elan, its shims, and its store",
	RunE:  runSelfUninstall,
}

func init() {
	selfCmd.AddCommand(selfInstallCmd, selfUpdateCmd, selfUninstallCmd)
	rootCmd.AddCommand(selfCmd)
}

func runSelfInstall(cmd *cobra.Command, _ []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}

	opts := selfinstall.InstallOptions{}
	if !noModifyPath {
		if profile, ok := defaultShellProfile(); ok {
			opts.ModifyPath = []string{profile}
		}
	}

	if err := selfinstall.Install(paths, opts); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "elan installed to %s\n", paths.Home)

	if defaultToolchain != "" {
		sink := newSink(cmd)
		if err := settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
			links := descriptor.LinkSet(s.LinkedToolchains)
			d, err := descriptor.Parse(defaultToolchain, links)
			if err != nil {
				return err
			}
			reg := newRegistry(paths, s, sink)
			identity, err := reg.Install(cmd.Context(), d, s.DefaultOrigin)
			if err != nil {
				return err
			}
			return reg.SetDefault(s, identity)
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "default toolchain set to %s\n", defaultToolchain)
	}

	fmt.Fprintf(out, "run 'source %s' to update your current shell\n", paths.EnvFile)
	return nil
}

func runSelfUpdate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if buildVersion == "" || buildVersion == "dev" {
		return fmt.Errorf("cannot self-update a development build")
	}

	paths, err := newPaths()
	if err != nil {
		return err
	}
	s, err := loadSettings(paths)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "current version: %s\n", buildVersion)
	fmt.Fprintln(out, "checking for updates...")

	check, err := selfinstall.SelfUpdate(cmd.Context(), "", buildVersion, updateAPIURL(s))
	if err != nil {
		return err
	}
	if !check.Available {
		fmt.Fprintln(out, "already up to date")
		return nil
	}
	fmt.Fprintf(out, "updated to %s (published %s)\n", check.Version, check.PublishedAt)
	return nil
}

func runSelfUninstall(cmd *cobra.Command, _ []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}

	if !assumeYes {
		fmt.Fprintf(cmd.OutOrStdout(), "this will remove %s. Continue? [y/N] ", paths.Home)
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(answer)) != "y" {
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
			return nil
		}
	}

	if err := selfinstall.Uninstall(paths); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "elan uninstalled")
	return nil
}

// updateAPIURL resolves the GitHub Enterprise-style API host for self
// updates: ELAN_UPDATE_ROOT (environment) takes precedence over a persisted
// settings.SelfUpdateURL, and both are optional.
func updateAPIURL(s *settings.Settings) string {
	if v := os.Getenv("ELAN_UPDATE_ROOT"); v != "" {
		return v
	}
	return s.SelfUpdateURL
}

// defaultShellProfile picks a plausible POSIX shell profile to append the
// env sourcing line to. A more complete implementation would detect the
// user's login shell; this mirrors what the store's env file itself
// assumes (a POSIX-compatible shell).
func defaultShellProfile() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return home + "/.profile", true
}
