package descriptor

import (
	"fmt"
	"strings"
)

// Identity computes the canonical, filesystem-safe identity string for a
// descriptor, given the configured default origin (e.g. "leanprover/lean4").
// Equal descriptors (after normalising against the same default origin)
// always yield equal identities (data model invariant 1).
//
// RemoteFile descriptors have no identity of their own: they are "follow"
// pointers that must be re-resolved (fetch the file, re-parse its text) by
// the release resolver before an identity can be computed. Calling Identity
// on a RemoteFile descriptor returns an error.
func Identity(d Descriptor, defaultOrigin string) (string, error) {
	switch d.Kind {
	case KindSymbolic:
		return d.Channel, nil
	case KindVersioned:
		return d.Tag, nil
	case KindRemote:
		if d.Origin == defaultOrigin {
			return d.Tag, nil
		}
		return slugifyOrigin(d.Origin) + "-" + d.Tag, nil
	case KindLinked:
		return d.Name, nil
	case KindRemoteFile:
		return "", fmt.Errorf("descriptor %q must be followed before an identity can be computed", d.String())
	default:
		return "", fmt.Errorf("unknown descriptor kind %d", d.Kind)
	}
}

// slugifyOrigin replaces slashes with dashes, e.g. "leanprover/lean4" ->
// "leanprover-lean4".
func slugifyOrigin(origin string) string {
	return strings.ReplaceAll(origin, "/", "-")
}
