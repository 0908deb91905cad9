package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/leanprover/elan/cmd"
	"github.com/leanprover/elan/pkg/elanerr"
	"github.com/leanprover/elan/pkg/override"
	"github.com/leanprover/elan/pkg/proxy"
	"github.com/leanprover/elan/pkg/registry"
	"github.com/leanprover/elan/pkg/release"
	"github.com/leanprover/elan/pkg/settings"
	"github.com/leanprover/elan/pkg/store"
	"github.com/leanprover/elan/pkg/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main dispatches on argv[0]: a name in proxy.ManagerNames runs the Cobra
// command tree; a name in proxy.ProxiedTools resolves the active toolchain
// for the current directory, installs it on demand, and execs straight into
// the toolchain's own binary. Any other name is a misconfiguration.
func main() {
	cmd.SetBuildInfo(version, commit, date)

	name := proxy.ToolName(os.Args[0])

	switch {
	case proxy.ManagerNames[name]:
		if name == "elan-init" {
			// elan-init is the bootstrap entry point: it always means
			// "self install", with the rest of argv passed through as
			// that subcommand's own flags (spec §4.9).
			os.Args = append([]string{os.Args[0], "self", "install"}, os.Args[1:]...)
		}
		if err := cmd.Execute(); err != nil {
			fatal(err)
		}
	case proxy.ProxiedTools[name]:
		if err := runProxy(name, os.Args[1:]); err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("elan was invoked as %q, which is neither a manager name nor a known proxied tool", name))
	}
}

// runProxy implements the proxied-tool entrypoint: resolve the active
// toolchain for the working directory, install it if absent, then replace
// the current process image with the toolchain's own binary.
func runProxy(tool string, args []string) error {
	selector, rest := proxy.SplitSelector(args)

	paths, err := store.NewPaths("")
	if err != nil {
		return err
	}
	if err := paths.EnsureLayout(); err != nil {
		return err
	}
	_ = paths.PruneTmp()

	s, err := settings.Load(paths.SettingsFile)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	res, err := override.Resolve(cwd, selector, override.EnvFromOS(), s)
	if err != nil {
		return err
	}

	sink := telemetry.FilterSink{
		Inner: telemetry.NewWriterSink(os.Stderr),
		Quiet: os.Getenv("ELAN_QUIET") != "",
	}
	resolver := release.NewResolver(nil, s.DefaultOrigin)
	reg := registry.New(paths, resolver, sink)

	ctx := context.Background()
	identity, err := reg.EnsureInstalled(ctx, res.Descriptor, s.DefaultOrigin)
	if err != nil {
		return err
	}

	binDir := reg.BinDir(s, identity)
	inv, err := proxy.BuildInvocation(binDir, tool, rest)
	if err != nil {
		return err
	}
	return proxy.Exec(inv)
}

func fatal(err error) {
	code := elanerr.ExitHandled
	var coder elanerr.ExitCoder
	if errors.As(err, &coder) {
		code = coder.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", err)
	os.Exit(code)
}
