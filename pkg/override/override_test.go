package override

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/elanerr"
	"github.com/leanprover/elan/pkg/settings"
)

func TestResolveExplicitSelectorWins(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.DefaultToolchain = "stable"

	res, err := Resolve(dir, "nightly", Env{ElanToolchain: "beta"}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleExplicit {
		t.Errorf("Rule = %v, want RuleExplicit", res.Rule)
	}
	if res.Descriptor != descriptor.Symbolic("nightly") {
		t.Errorf("Descriptor = %+v, want nightly", res.Descriptor)
	}
}

func TestResolveEnvironmentBeatsDirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.SetOverride(dir, "stable")

	res, err := Resolve(dir, "", Env{ElanToolchain: "beta"}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleEnvironment {
		t.Errorf("Rule = %v, want RuleEnvironment", res.Rule)
	}
}

func TestResolveLeanVersionFallback(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()

	res, err := Resolve(dir, "", Env{LeanVersion: "beta"}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleEnvironment || res.Descriptor != descriptor.Symbolic("beta") {
		t.Errorf("got %+v, want beta via RuleEnvironment", res)
	}

	// ELAN_TOOLCHAIN must win over LEAN_VERSION when both are set.
	res, err = Resolve(dir, "", Env{ElanToolchain: "stable", LeanVersion: "beta"}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Descriptor != descriptor.Symbolic("stable") {
		t.Errorf("got %+v, want stable (ELAN_TOOLCHAIN precedence)", res)
	}
}

func TestResolveClosestAncestorOverride(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	s := settings.Default()
	s.SetOverride(root, "stable")
	s.SetOverride(filepath.Join(root, "a"), "beta")

	res, err := Resolve(nested, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleDirectoryOverride {
		t.Errorf("Rule = %v, want RuleDirectoryOverride", res.Rule)
	}
	if res.Descriptor != descriptor.Symbolic("beta") {
		t.Errorf("Descriptor = %+v, want beta (closest ancestor)", res.Descriptor)
	}
}

func TestResolveDeeperLeanToolchainBeatsShallowerOverride(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "lean-toolchain"), []byte("nightly\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := settings.Default()
	s.SetOverride(root, "stable")

	res, err := Resolve(nested, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleLeanToolchainFile {
		t.Errorf("Rule = %v, want RuleLeanToolchainFile (closer ancestor than the override)", res.Rule)
	}
	if res.Descriptor != descriptor.Symbolic("nightly") {
		t.Errorf("Descriptor = %+v, want nightly", res.Descriptor)
	}
}

func TestResolveOverrideBeatsShallowerLeanToolchain(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "lean-toolchain"), []byte("nightly\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := settings.Default()
	s.SetOverride(nested, "stable")

	res, err := Resolve(nested, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleDirectoryOverride {
		t.Errorf("Rule = %v, want RuleDirectoryOverride (closer ancestor than the file)", res.Rule)
	}
	if res.Descriptor != descriptor.Symbolic("stable") {
		t.Errorf("Descriptor = %+v, want stable", res.Descriptor)
	}
}

func TestResolveLeanToolchainFile(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sub")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lean-toolchain"), []byte("nightly-2023-06-27\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := settings.Default()
	res, err := Resolve(nested, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleLeanToolchainFile {
		t.Errorf("Rule = %v, want RuleLeanToolchainFile", res.Rule)
	}
	if res.Descriptor != descriptor.Versioned("nightly-2023-06-27") {
		t.Errorf("Descriptor = %+v, want nightly-2023-06-27", res.Descriptor)
	}
}

func TestResolveLeanToolchainBeatsLeanpkgToml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lean-toolchain"), []byte("stable\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leanpkg.toml"), []byte("lean_version = \"beta\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := settings.Default()
	res, err := Resolve(dir, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleLeanToolchainFile {
		t.Errorf("Rule = %v, want RuleLeanToolchainFile", res.Rule)
	}
}

func TestResolveLeanpkgTomlFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "leanpkg.toml"), []byte("lean_version = \"beta\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := settings.Default()
	res, err := Resolve(dir, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleLeanpkgToml {
		t.Errorf("Rule = %v, want RuleLeanpkgToml", res.Rule)
	}
	if res.Descriptor != descriptor.Symbolic("beta") {
		t.Errorf("Descriptor = %+v, want beta", res.Descriptor)
	}
}

func TestResolveDefaultToolchain(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.DefaultToolchain = "stable"

	res, err := Resolve(dir, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Rule != RuleDefault {
		t.Errorf("Rule = %v, want RuleDefault", res.Rule)
	}
}

func TestResolveNoToolchainSelected(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()

	_, err := Resolve(dir, "", Env{}, s)
	if err == nil {
		t.Fatal("expected an error")
	}
	var target *elanerr.NoToolchainSelected
	if _, ok := err.(*elanerr.NoToolchainSelected); !ok {
		t.Errorf("err = %v (%T), want %T", err, err, target)
	}
}

func TestResolveLinkedName(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.LinkedToolchains = map[string]string{"dev": "/home/user/lean4"}
	s.DefaultToolchain = "dev"

	res, err := Resolve(dir, "", Env{}, s)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Descriptor != descriptor.Linked("dev") {
		t.Errorf("Descriptor = %+v, want Linked(dev)", res.Descriptor)
	}
}
