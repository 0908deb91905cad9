package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/settings"
)

var updateCmd = &cobra.Command{
	Use:   "update [TOOLCHAIN...]",
	Short: "Refresh one, many, or all installed toolchains",
	RunE:  runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	paths, err := newPaths()
	if err != nil {
		return err
	}
	sink := newSink(cmd)
	return settings.WithLock(cmd.Context(), paths, sink, func(s *settings.Settings) error {
		reg := newRegistry(paths, s, sink)

		targets := args
		if len(targets) == 0 {
			entries, err := reg.List(s)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if !e.Linked {
					targets = append(targets, e.Identity)
				}
			}
		}

		links := descriptor.LinkSet(s.LinkedToolchains)
		out := cmd.OutOrStdout()
		for _, text := range targets {
			d, err := descriptor.Parse(text, links)
			if err != nil {
				return err
			}
			identity, changed, err := reg.Update(cmd.Context(), d, s.DefaultOrigin)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(out, "updated %s\n", identity)
			} else {
				fmt.Fprintf(out, "%s is already up to date\n", identity)
			}
		}
		return nil
	})
}
