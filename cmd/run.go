package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/proxy"
)

var runCmd = &cobra.Command{
	Use:                "run TOOLCHAIN PROGRAM [ARGS...]",
	Short:              "Execute PROGRAM using a specific toolchain",
	Args:               cobra.MinimumNArgs(2),
	DisableFlagParsing: true,
	RunE:               runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	toolchainText, program, rest := args[0], args[1], args[2:]

	paths, err := newPaths()
	if err != nil {
		return err
	}
	s, err := loadSettings(paths)
	if err != nil {
		return err
	}

	links := descriptor.LinkSet(s.LinkedToolchains)
	d, err := descriptor.Parse(toolchainText, links)
	if err != nil {
		return err
	}

	sink := newSink(cmd)
	reg := newRegistry(paths, s, sink)
	identity, err := reg.EnsureInstalled(cmd.Context(), d, s.DefaultOrigin)
	if err != nil {
		return err
	}

	binDir := reg.BinDir(s, identity)
	inv, err := proxy.BuildInvocation(binDir, program, rest)
	if err != nil {
		return err
	}
	return proxy.Exec(inv)
}
