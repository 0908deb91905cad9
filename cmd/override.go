package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/settings"
)

var overridePathFlag string

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage directory-specific toolchain overrides",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set TOOLCHAIN",
	Short: "Set the override for a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runOverrideSet,
}

var overrideUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Remove the override for a directory",
	Args:  cobra.NoArgs,
	RunE:  runOverrideUnset,
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all directory overrides",
	Args:  cobra.NoArgs,
	RunE:  runOverrideList,
}

func init() {
	for _, c := range []*cobra.Command{overrideSetCmd, overrideUnsetCmd} {
		c.Flags().StringVar(&overridePathFlag, "path", "", "directory the override applies to (default: current directory)")
	}
	overrideCmd.AddCommand(overrideSetCmd, overrideUnsetCmd, overrideListCmd)
	rootCmd.AddCommand(overrideCmd)
}

// overrideDir resolves the directory an override command applies to,
// normalised to an absolute, symlink-resolved path (spec.md §3) so it keys
// into the same settings.Overrides entries that Resolve looks up by.
func overrideDir() (string, error) {
	dir := overridePathFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return settings.NormalizeDir(dir)
}

func runOverrideSet(cmd *cobra.Command, args []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	dir, err := overrideDir()
	if err != nil {
		return err
	}
	sink := newSink(cmd)
	return settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
		s.SetOverride(dir, args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "override for %s set to %s\n", dir, args[0])
		return nil
	})
}

func runOverrideUnset(cmd *cobra.Command, _ []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	dir, err := overrideDir()
	if err != nil {
		return err
	}
	sink := newSink(cmd)
	return settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
		if !s.UnsetOverride(dir) {
			fmt.Fprintf(cmd.OutOrStdout(), "no override set for %s\n", dir)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "override for %s removed\n", dir)
		return nil
	})
}

func runOverrideList(cmd *cobra.Command, _ []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	s, err := loadSettings(paths)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range s.OverrideList() {
		fmt.Fprintf(out, "%s -> %s\n", r.Directory, r.Descriptor)
	}
	return nil
}
