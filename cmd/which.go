package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/elanerr"
	"github.com/leanprover/elan/pkg/override"
)

var whichCmd = &cobra.Command{
	Use:   "which PROGRAM",
	Short: "Print the resolved binary path for PROGRAM",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhich,
}

func init() {
	rootCmd.AddCommand(whichCmd)
}

func runWhich(cmd *cobra.Command, args []string) error {
	program := args[0]

	paths, err := newPaths()
	if err != nil {
		return err
	}
	s, err := loadSettings(paths)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	res, err := override.Resolve(cwd, "", override.EnvFromOS(), s)
	if err != nil {
		return err
	}

	identity, err := descriptor.Identity(res.Descriptor, s.DefaultOrigin)
	if err != nil {
		return err
	}

	reg := newRegistry(paths, s, newSink(cmd))
	binDir := reg.BinDir(s, identity)
	target := filepath.Join(binDir, program)
	if _, err := os.Stat(target); err != nil {
		return &elanerr.ToolNotInToolchain{Tool: program, Identity: identity}
	}

	fmt.Fprintln(cmd.OutOrStdout(), target)
	return nil
}
