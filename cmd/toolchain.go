package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/settings"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Install, remove, link, and list toolchains",
}

var toolchainInstallCmd = &cobra.Command{
	Use:   "install TOOLCHAIN",
	Short: "Install a toolchain",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolchainInstall,
}

var toolchainUninstallCmd = &cobra.Command{
	Use:   "uninstall TOOLCHAIN",
	Short: "Remove an installed toolchain",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolchainUninstall,
}

var toolchainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed and linked toolchains",
	RunE:  runToolchainList,
}

var toolchainLinkCmd = &cobra.Command{
	Use:   "link NAME PATH",
	Short: "Register a local directory as a linked toolchain",
	Args:  cobra.ExactArgs(2),
	RunE:  runToolchainLink,
}

var toolchainUnlinkCmd = &cobra.Command{
	Use:   "unlink NAME",
	Short: "Remove a linked toolchain",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolchainUnlink,
}

var toolchainDefaultCmd = &cobra.Command{
	Use:   "default [TOOLCHAIN]",
	Short: "Show or set the default toolchain",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runToolchainDefault,
}

func init() {
	toolchainCmd.AddCommand(toolchainInstallCmd, toolchainUninstallCmd, toolchainListCmd, toolchainLinkCmd, toolchainUnlinkCmd, toolchainDefaultCmd)
	rootCmd.AddCommand(toolchainCmd)
}

func runToolchainInstall(cmd *cobra.Command, args []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	s, err := loadSettings(paths)
	if err != nil {
		return err
	}
	links := descriptor.LinkSet(s.LinkedToolchains)
	d, err := descriptor.Parse(args[0], links)
	if err != nil {
		return err
	}

	sink := newSink(cmd)
	reg := newRegistry(paths, s, sink)
	identity, err := reg.Install(cmd.Context(), d, s.DefaultOrigin)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", identity)
	return nil
}

func runToolchainUninstall(cmd *cobra.Command, args []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	sink := newSink(cmd)
	return settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
		reg := newRegistry(paths, s, sink)
		if err := reg.Uninstall(cmd.Context(), s, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s\n", args[0])
		return nil
	})
}

func runToolchainList(cmd *cobra.Command, _ []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	s, err := loadSettings(paths)
	if err != nil {
		return err
	}
	reg := newRegistry(paths, s, newSink(cmd))
	entries, err := reg.List(s)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		marker := "  "
		name := e.Identity
		if e.IsDefault {
			marker = "* "
			name = green(name)
		}
		if e.Linked {
			name = yellow(name)
		}
		fmt.Fprintf(out, "%s%s\n", marker, name)
	}
	return nil
}

func runToolchainLink(cmd *cobra.Command, args []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	sink := newSink(cmd)
	return settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
		reg := newRegistry(paths, s, sink)
		return reg.Link(s, args[0], args[1])
	})
}

func runToolchainUnlink(cmd *cobra.Command, args []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	sink := newSink(cmd)
	return settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
		reg := newRegistry(paths, s, sink)
		return reg.Unlink(s, args[0])
	})
}

func runToolchainDefault(cmd *cobra.Command, args []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		s, err := loadSettings(paths)
		if err != nil {
			return err
		}
		if s.DefaultToolchain == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "no default toolchain configured")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.DefaultToolchain)
		return nil
	}

	sink := newSink(cmd)
	return settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
		reg := newRegistry(paths, s, sink)
		if err := reg.SetDefault(s, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "default toolchain set to %s\n", args[0])
		return nil
	})
}
