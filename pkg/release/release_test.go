package release

import "testing"

func TestDetectFormat(t *testing.T) {
	cases := map[string]ArchiveFormat{
		"lean-4.9.0-linux.tar.zst":  FormatTarZst,
		"lean-4.9.0-linux.tar.gz":   FormatTarGz,
		"lean-4.9.0-linux.tgz":      FormatTarGz,
		"lean-4.9.0-windows.zip":    FormatZip,
		"lean-4.9.0-linux.deb":      FormatUnknown,
		"checksums.txt":             FormatUnknown,
	}
	for name, want := range cases {
		if got := DetectFormat(name); got != want {
			t.Errorf("DetectFormat(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFormatPreferenceOrdering(t *testing.T) {
	if formatPreference[FormatTarZst] >= formatPreference[FormatTarGz] {
		t.Error("tar.zst should be preferred over tar.gz")
	}
	if formatPreference[FormatTarGz] >= formatPreference[FormatZip] {
		t.Error("tar.gz should be preferred over zip")
	}
}

func TestPlatformMatchesOS(t *testing.T) {
	linux := PlatformTriple{OS: "linux", Arch: "amd64", Libc: "gnu"}
	if !linux.Matches("lean-4.9.0-linux-x86_64.tar.zst") {
		t.Error("expected linux/amd64 to match linux-x86_64 asset")
	}
	if linux.Matches("lean-4.9.0-darwin-x86_64.tar.zst") {
		t.Error("linux should not match darwin asset")
	}
	if linux.Matches("lean-4.9.0-linux-aarch64.tar.zst") {
		t.Error("amd64 should not match aarch64 asset")
	}
}

func TestPlatformMuslPrefersMuslButAcceptsGnu(t *testing.T) {
	musl := PlatformTriple{OS: "linux", Arch: "amd64", Libc: "musl"}
	if !musl.Matches("lean-4.9.0-linux-x86_64-musl.tar.zst") {
		t.Error("musl system should match musl asset")
	}
	if !musl.Matches("lean-4.9.0-linux-x86_64.tar.zst") {
		t.Error("musl system should still accept a glibc-only asset as eligible fallback")
	}
}

func TestPlatformGnuRejectsMusl(t *testing.T) {
	gnu := PlatformTriple{OS: "linux", Arch: "amd64", Libc: "gnu"}
	if gnu.Matches("lean-4.9.0-linux-x86_64-musl.tar.zst") {
		t.Error("glibc system should not match a musl-only asset")
	}
}

func TestChannelMatches(t *testing.T) {
	cases := []struct {
		channel, tag string
		prerelease   bool
		want         bool
	}{
		{"nightly", "nightly-2023-06-27", false, true},
		{"nightly", "v4.9.0", false, false},
		{"beta", "v4.9.0-rc1", true, true},
		{"stable", "v4.9.0", false, true},
		{"stable", "nightly-2023-06-27", false, false},
		{"stable", "v4.9.0-rc1", true, false},
	}
	for _, c := range cases {
		if got := channelMatches(c.channel, c.tag, c.prerelease); got != c.want {
			t.Errorf("channelMatches(%q, %q, %v) = %v, want %v", c.channel, c.tag, c.prerelease, got, c.want)
		}
	}
}

func TestSplitOrigin(t *testing.T) {
	owner, repo, err := splitOrigin("leanprover/lean4")
	if err != nil {
		t.Fatalf("splitOrigin() returned error: %v", err)
	}
	if owner != "leanprover" || repo != "lean4" {
		t.Errorf("splitOrigin() = (%q, %q)", owner, repo)
	}

	if _, _, err := splitOrigin("not-an-origin"); err == nil {
		t.Error("splitOrigin() should fail on a slug without a slash")
	}
}
