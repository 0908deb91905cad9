// Package descriptor parses toolchain descriptors from CLI selectors,
// lean-toolchain files, and leanpkg.toml files, and computes their
// canonical, filesystem-safe identity.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/leanprover/elan/pkg/elanerr"
)

// Kind enumerates the five descriptor variants from the data model.
type Kind int

const (
	// KindSymbolic is a named channel: stable, beta, nightly.
	KindSymbolic Kind = iota
	// KindVersioned is an explicit release tag against the default origin.
	KindVersioned
	// KindRemote is origin:tag against an explicit origin repository.
	KindRemote
	// KindRemoteFile is origin:path, "follow" semantics.
	KindRemoteFile
	// KindLinked is a user-defined alias to an arbitrary local directory.
	KindLinked
)

// Channels recognised for KindSymbolic.
const (
	ChannelStable  = "stable"
	ChannelBeta    = "beta"
	ChannelNightly = "nightly"
)

var symbolicChannels = map[string]bool{
	ChannelStable:  true,
	ChannelBeta:    true,
	ChannelNightly: true,
}

// Descriptor is a tagged sum of the five toolchain-descriptor cases. Exactly
// the fields relevant to Kind are meaningful; this mirrors a closed sum type
// without Go inheritance.
type Descriptor struct {
	Kind Kind

	// Channel is set for KindSymbolic.
	Channel string

	// Tag is set for KindVersioned and KindRemote.
	Tag string

	// Origin is set for KindRemote and KindRemoteFile ("owner/repo").
	Origin string

	// Path is set for KindRemoteFile (the file path within Origin).
	Path string

	// Name is set for KindLinked (the registered alias).
	Name string
}

// Symbolic builds a Descriptor for a named channel.
func Symbolic(channel string) Descriptor {
	return Descriptor{Kind: KindSymbolic, Channel: channel}
}

// Versioned builds a Descriptor for an explicit tag against the default origin.
func Versioned(tag string) Descriptor {
	return Descriptor{Kind: KindVersioned, Tag: tag}
}

// Remote builds a Descriptor for an explicit origin and tag/channel.
func Remote(origin, tag string) Descriptor {
	return Descriptor{Kind: KindRemote, Origin: origin, Tag: tag}
}

// RemoteFile builds a "follow" Descriptor pointing at a file in origin.
func RemoteFile(origin, path string) Descriptor {
	return Descriptor{Kind: KindRemoteFile, Origin: origin, Path: path}
}

// Linked builds a Descriptor for a registered local alias.
func Linked(name string) Descriptor {
	return Descriptor{Kind: KindLinked, Name: name}
}

// String renders the descriptor back to its textual form, the inverse of
// Parse (modulo the default-origin omission rule), used for the round-trip
// invariant identity(parse(show(d))) == identity(d).
func (d Descriptor) String() string {
	switch d.Kind {
	case KindSymbolic:
		return d.Channel
	case KindVersioned:
		return d.Tag
	case KindRemote:
		return d.Origin + ":" + d.Tag
	case KindRemoteFile:
		return d.Origin + ":" + d.Path
	case KindLinked:
		return d.Name
	default:
		return ""
	}
}

// KnownLinks is the set of registered linked-toolchain names, supplied by
// the caller (from settings) so the parser can match KindLinked after the
// origin forms and before the channel and tag fallbacks.
type KnownLinks interface {
	IsLinked(name string) bool
}

// LinkSet is a simple map-backed KnownLinks implementation.
type LinkSet map[string]bool

// IsLinked implements KnownLinks.
func (s LinkSet) IsLinked(name string) bool { return s[name] }

// Parse parses a textual descriptor per the grammar in the spec:
//
//	desc   := linked | remote-file | remote | versioned | symbolic
//	remote := origin ":" tag
//	remote-file := origin ":" path-ending-in "lean-toolchain"
//	linked := a registered linked name (checked after the origin forms,
//	          before channels and tags)
//
// Trailing whitespace is trimmed by the caller (ParseLeanToolchainFile
// already does this); Parse itself trims leading/trailing space defensively.
func Parse(text string, links KnownLinks) (Descriptor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Descriptor{}, &elanerr.ParseFailed{Text: text, Cause: fmt.Errorf("empty descriptor")}
	}

	if idx := strings.Index(text, ":"); idx >= 0 {
		origin := text[:idx]
		rest := text[idx+1:]
		if origin != "" && strings.HasSuffix(rest, "lean-toolchain") {
			return RemoteFile(origin, rest), nil
		}
		if looksLikeOrigin(origin) {
			return Remote(origin, rest), nil
		}
	}

	if links != nil && links.IsLinked(text) {
		return Linked(text), nil
	}

	if symbolicChannels[text] {
		return Symbolic(text), nil
	}

	return Versioned(text), nil
}

// looksLikeOrigin reports whether s has the shape of a GitHub "owner/repo"
// slug: exactly one slash, both sides non-empty.
func looksLikeOrigin(s string) bool {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return false
	}
	return parts[0] != "" && parts[1] != ""
}

// leanToolchainFile holds the parsed contents of a leanpkg.toml relevant to
// descriptor resolution.
type leanToolchainFile struct {
	LeanVersion string `toml:"lean_version"`
}

// ParseLeanpkgToml extracts the lean_version field from leanpkg.toml content
// and parses it as a descriptor.
func ParseLeanpkgToml(data []byte, links KnownLinks) (Descriptor, error) {
	var f leanToolchainFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return Descriptor{}, &elanerr.ParseFailed{Text: string(data), Cause: err}
	}
	if f.LeanVersion == "" {
		return Descriptor{}, &elanerr.ParseFailed{Text: string(data), Cause: fmt.Errorf("missing lean_version field")}
	}
	return Parse(f.LeanVersion, links)
}

// ParseLeanToolchainFile extracts the descriptor from lean-toolchain file
// content: the first non-blank line, UTF-8 text.
func ParseLeanToolchainFile(data []byte, links KnownLinks) (Descriptor, error) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return Parse(line, links)
	}
	return Descriptor{}, &elanerr.ParseFailed{Text: string(data), Cause: fmt.Errorf("no non-blank line found")}
}
