// Package override implements the precedence ladder that picks a single
// toolchain descriptor for a directory: explicit selector, environment,
// directory overrides, project files, then the configured default.
package override

import (
	"os"
	"path/filepath"

	"github.com/leanprover/elan/pkg/descriptor"
	"github.com/leanprover/elan/pkg/elanerr"
	"github.com/leanprover/elan/pkg/settings"
)

// Rule identifies which precedence-ladder step produced a Resolution, so
// callers can render provenance the way `elan show` does.
type Rule int

const (
	RuleExplicit Rule = iota
	RuleEnvironment
	RuleDirectoryOverride
	RuleLeanToolchainFile
	RuleLeanpkgToml
	RuleDefault
)

// Resolution is the descriptor selected for a directory, together with the
// rule that produced it and a human-readable provenance string such as
// "overridden by '/home/user/proj/lean-toolchain'".
type Resolution struct {
	Descriptor descriptor.Descriptor
	Rule       Rule
	Provenance string
}

// Env abstracts the two environment variables the ladder consults, so tests
// don't need to mutate process-global state.
type Env struct {
	ElanToolchain string
	LeanVersion   string // historical fallback, used only if ElanToolchain is empty
}

// EnvFromOS reads Env from the real process environment.
func EnvFromOS() Env {
	return Env{
		ElanToolchain: os.Getenv("ELAN_TOOLCHAIN"),
		LeanVersion:   os.Getenv("LEAN_VERSION"),
	}
}

// Resolve walks the precedence ladder for directory dir. explicitSelector is
// the text of a `+tag`/`--toolchain` CLI argument, or "" if none was given.
func Resolve(dir string, explicitSelector string, env Env, s *settings.Settings) (Resolution, error) {
	if normalized, err := settings.NormalizeDir(dir); err == nil {
		dir = normalized
	} else {
		dir = filepath.Clean(dir)
	}
	links := descriptor.LinkSet(s.LinkedToolchains)

	if explicitSelector != "" {
		d, err := descriptor.Parse(explicitSelector, links)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Descriptor: d, Rule: RuleExplicit, Provenance: "explicit selector " + explicitSelector}, nil
	}

	if tc := env.ElanToolchain; tc != "" {
		d, err := descriptor.Parse(tc, links)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Descriptor: d, Rule: RuleEnvironment, Provenance: "ELAN_TOOLCHAIN environment variable"}, nil
	}
	if tc := env.LeanVersion; tc != "" {
		d, err := descriptor.Parse(tc, links)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Descriptor: d, Rule: RuleEnvironment, Provenance: "LEAN_VERSION environment variable"}, nil
	}

	// Steps 3-5 (directory override, lean-toolchain file, leanpkg.toml file)
	// all walk upward from dir looking for the closest match; the §8
	// closest-wins invariant requires comparing how deep each candidate's
	// match actually is, not just picking a fixed rule order, since a
	// lean-toolchain file nested below a shallower directory override must
	// win (it is the closer ancestor).
	var candidates []ladderCandidate

	if text, matched, ok := s.ClosestOverride(dir); ok {
		candidates = append(candidates, ladderCandidate{
			dir: matched,
			build: func() (Resolution, error) {
				d, err := descriptor.Parse(text, links)
				if err != nil {
					return Resolution{}, err
				}
				return Resolution{Descriptor: d, Rule: RuleDirectoryOverride, Provenance: "overridden by directory override at " + matched}, nil
			},
		})
	}

	if path, data, ok := findUpwards(dir, "lean-toolchain"); ok {
		matched := filepath.Dir(path)
		candidates = append(candidates, ladderCandidate{
			dir: matched,
			build: func() (Resolution, error) {
				d, err := descriptor.ParseLeanToolchainFile(data, links)
				if err != nil {
					return Resolution{}, err
				}
				return Resolution{Descriptor: d, Rule: RuleLeanToolchainFile, Provenance: "overridden by '" + path + "'"}, nil
			},
		})
	}

	if path, data, ok := findUpwards(dir, "leanpkg.toml"); ok {
		matched := filepath.Dir(path)
		candidates = append(candidates, ladderCandidate{
			dir: matched,
			build: func() (Resolution, error) {
				d, err := descriptor.ParseLeanpkgToml(data, links)
				if err != nil {
					return Resolution{}, err
				}
				return Resolution{Descriptor: d, Rule: RuleLeanpkgToml, Provenance: "overridden by '" + path + "'"}, nil
			},
		})
	}

	if best, ok := closest(candidates); ok {
		return best.build()
	}

	if s.DefaultToolchain != "" {
		d, err := descriptor.Parse(s.DefaultToolchain, links)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Descriptor: d, Rule: RuleDefault, Provenance: "default toolchain"}, nil
	}

	return Resolution{}, &elanerr.NoToolchainSelected{}
}

// ladderCandidate is one of the directory-scoped ladder steps (3-5) that
// matched somewhere at or above dir.
type ladderCandidate struct {
	dir   string // the directory the match was found at
	build func() (Resolution, error)
}

// closest picks the candidate whose matched directory is the deepest
// (closest to the original dir). Since every candidate's dir is an
// ancestor of (or equal to) the same starting directory, the ancestors
// form a chain, so comparing path length is equivalent to comparing
// depth. Ties (two candidates matched at the exact same directory) keep
// whichever was appended first, i.e. the original rule order: directory
// override, then lean-toolchain file, then leanpkg.toml.
func closest(candidates []ladderCandidate) (ladderCandidate, bool) {
	if len(candidates) == 0 {
		return ladderCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c.dir) > len(best.dir) {
			best = c
		}
	}
	return best, true
}

// findUpwards walks from dir towards the filesystem root looking for name,
// returning the first match's full path and contents.
func findUpwards(dir, name string) (path string, data []byte, ok bool) {
	for {
		candidate := filepath.Join(dir, name)
		if b, err := os.ReadFile(candidate); err == nil {
			return candidate, b, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, false
		}
		dir = parent
	}
}
