package selfinstall

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanprover/elan/pkg/store"
)

func TestInstallCreatesShimsAndEnvFiles(t *testing.T) {
	home := t.TempDir()
	paths, err := store.NewPaths(home)
	if err != nil {
		t.Fatalf("NewPaths() error = %v", err)
	}

	if err := Install(paths, InstallOptions{}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	managerPath := filepath.Join(paths.BinDir, managerBinaryName())
	if _, err := os.Stat(managerPath); err != nil {
		t.Errorf("expected manager binary at %s: %v", managerPath, err)
	}

	for _, tool := range []string{"lean", "lake", "leanc", "leanmake", "leanchecker", "leanpkg"} {
		shimPath := filepath.Join(paths.BinDir, shimName(tool))
		if _, err := os.Stat(shimPath); err != nil {
			t.Errorf("expected shim at %s: %v", shimPath, err)
		}
	}

	if _, err := os.Stat(paths.EnvFile); err != nil {
		t.Errorf("expected env file: %v", err)
	}
	if _, err := os.Stat(paths.EnvPS1File); err != nil {
		t.Errorf("expected env.ps1 file: %v", err)
	}

	envContent, err := os.ReadFile(paths.EnvFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(envContent), paths.Home) {
		t.Errorf("env file should reference home dir, got: %s", envContent)
	}
}

func TestInstallAppendsProfileOnce(t *testing.T) {
	home := t.TempDir()
	paths, err := store.NewPaths(home)
	if err != nil {
		t.Fatalf("NewPaths() error = %v", err)
	}

	profile := filepath.Join(t.TempDir(), "bashrc")
	if err := os.WriteFile(profile, []byte("# existing config\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := InstallOptions{ModifyPath: []string{profile}}
	if err := Install(paths, opts); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := Install(paths, opts); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}

	content, err := os.ReadFile(profile)
	if err != nil {
		t.Fatal(err)
	}
	count := strings.Count(string(content), paths.EnvFile)
	if count != 1 {
		t.Errorf("expected exactly one source line referencing %s, found %d in %s", paths.EnvFile, count, content)
	}
}

func TestUninstallRemovesStore(t *testing.T) {
	home := t.TempDir()
	paths, err := store.NewPaths(home)
	if err != nil {
		t.Fatalf("NewPaths() error = %v", err)
	}
	if err := Install(paths, InstallOptions{}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if err := Uninstall(paths); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if _, err := os.Stat(home); !os.IsNotExist(err) {
		t.Errorf("expected home directory to be removed, stat err = %v", err)
	}
}
