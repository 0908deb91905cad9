package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leanprover/elan/pkg/override"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show installed toolchains and the active selection",
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, _ []string) error {
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
	fmt.Fprintln(out, bold("installed toolchains"))
	fmt.Fprintln(out, "--------------------")
	for _, e := range entries {
		marker := "  "
		name := e.Identity
		if e.IsDefault {
			marker = "* "
			name = green(name)
		}
		if e.Linked {
			fmt.Fprintf(out, "%s%s (linked -> %s)\n", marker, yellow(name), e.LinkPath)
			continue
		}
		fmt.Fprintf(out, "%s%s\n", marker, name)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	res, err := override.Resolve(cwd, "", override.EnvFromOS(), s)
	if err != nil {
		fmt.Fprintln(out, "\nactive toolchain: none selected")
		return nil
	}
	fmt.Fprintf(out, "\nactive toolchain: %s (%s)\n", green(res.Descriptor.String()), res.Provenance)
	return nil
}
