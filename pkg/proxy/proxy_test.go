package proxy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestToolName(t *testing.T) {
	if got := ToolName("/usr/local/bin/lean"); got != "lean" {
		t.Errorf("ToolName(/usr/local/bin/lean) = %q, want lean", got)
	}
	if got := ToolName("lake.exe"); got != "lake" {
		t.Errorf("ToolName(lake.exe) = %q, want lake", got)
	}
}

func TestSplitSelector(t *testing.T) {
	sel, rest := SplitSelector([]string{"+nightly", "build"})
	if sel != "nightly" || len(rest) != 1 || rest[0] != "build" {
		t.Errorf("got (%q, %v)", sel, rest)
	}

	sel, rest = SplitSelector([]string{"build"})
	if sel != "" || len(rest) != 1 {
		t.Errorf("got (%q, %v), want no selector", sel, rest)
	}
}

func TestBuildInvocationMissingTool(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildInvocation(dir, "lean", nil)
	if err == nil {
		t.Fatal("expected an error for a missing tool binary")
	}
}

func TestBuildInvocationPrependsPath(t *testing.T) {
	dir := t.TempDir()
	toolPath := filepath.Join(dir, "lean")
	if err := os.WriteFile(toolPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	inv, err := BuildInvocation(dir, "lean", []string{"--version"})
	if err != nil {
		t.Fatalf("BuildInvocation() error = %v", err)
	}
	if inv.Path != toolPath {
		t.Errorf("Path = %q, want %q", inv.Path, toolPath)
	}
	if len(inv.Args) != 2 || inv.Args[1] != "--version" {
		t.Errorf("Args = %v", inv.Args)
	}

	var pathVal string
	for _, kv := range inv.Env {
		if strings.HasPrefix(kv, "PATH=") {
			pathVal = strings.TrimPrefix(kv, "PATH=")
		}
		if strings.HasPrefix(kv, "LD_LIBRARY_PATH=") || strings.HasPrefix(kv, "DYLD_LIBRARY_PATH=") {
			t.Errorf("expected (DY)LD_LIBRARY_PATH to be unset, found %q", kv)
		}
	}
	if !strings.HasPrefix(pathVal, dir+string(os.PathListSeparator)) && pathVal != dir {
		t.Errorf("PATH = %q, want to start with %q", pathVal, dir)
	}
}
