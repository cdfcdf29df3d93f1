// Package trove implements the in-memory trove object: a named, versioned,
// flavor-qualified package with a file manifest, sub-trove references,
// dependency sets, build metadata, and cryptographic digests.
package trove

import (
	"sort"

	"github.com/CourtJesterG/conary/internal/depset"
	"github.com/CourtJesterG/conary/internal/version"
)

// TroveType classifies what kind of semantic content a trove carries.
type TroveType int

const (
	TypeNormal TroveType = iota
	TypeRedirect
	TypeRemoved
)

// PathID stably identifies a logical file slot within a trove's manifest
// across versions, independent of the file's content or path string.
type PathID [16]byte

// FileID is the SHA-1 of a file-stream's canonical freeze.
type FileID [20]byte

// ManifestEntry is a single path within a trove instance.
type ManifestEntry struct {
	PathID  PathID
	Path    string
	FileID  FileID
	Version version.Version
}

// TroveRef is a sub-trove edge: (parent) -> (child-item, child-version,
// child-flavor), with byDefault/strongRef flags.
type TroveRef struct {
	Name        string
	Version     version.Version
	Flavor      version.Flavor
	ByDefault   bool
	IsStrongRef bool
}

// MetadataItem is one key/value entry of a trove's metadata block; order
// is part of the canonical signable form.
type MetadataItem struct {
	Key   string
	Value string
}

// BuildRequirement references a build-time (not runtime) dependency on
// another trove.
type BuildRequirement struct {
	Name    string
	Version version.Version
	Flavor  version.Flavor
}

// Signature is an OpenPGP signature over a trove's digest, keyed by the
// fingerprint of the signing key.
type Signature struct {
	KeyFingerprint string
	SigData        []byte
}

// Trove is the in-memory package object.
type Trove struct {
	Name    string
	Version version.Version
	Flavor  version.Flavor

	// DigestVersion gates which digest algorithms are expected:
	// 0 = SHA-1 only (legacy), 1 = SHA-1+SHA-256 (current trove-info).
	DigestVersion int

	Manifest map[PathID]ManifestEntry
	SubTroves []TroveRef

	Provides depset.Set
	Requires depset.Set
	BuildRequires []BuildRequirement

	Metadata []MetadataItem

	Type         TroveType
	ClonedFromID *version.Version
	Redirects    []TroveRef // populated only when Type == TypeRedirect

	Signatures []Signature

	// AttachedDigest is a digest recorded for this Trove earlier, if any
	// (Sign sets it); VerifyDigests compares against it instead of a
	// freshly-computed digest so that a change made after it was recorded
	// is still caught rather than silently recomputed away.
	AttachedDigest *Digest
}

// New constructs an empty Trove with the given identity.
func New(name string, v version.Version, f version.Flavor) *Trove {
	return &Trove{
		Name:      name,
		Version:   v,
		Flavor:    f,
		Manifest:  map[PathID]ManifestEntry{},
		Provides:  depset.NewSet(),
		Requires:  depset.NewSet(),
	}
}

// AddFile inserts or replaces a manifest entry. Returns an error if the
// path string collides with a different pathId already present (§3
// invariant: unique paths within a manifest).
func (t *Trove) AddFile(e ManifestEntry) error {
	for pid, existing := range t.Manifest {
		if pid != e.PathID && existing.Path == e.Path {
			return duplicatePathError(e.Path)
		}
	}
	t.Manifest[e.PathID] = e
	return nil
}

// RemoveFile deletes a manifest entry by pathId. No-op if absent.
func (t *Trove) RemoveFile(pid PathID) {
	delete(t.Manifest, pid)
}

// SortedManifest returns the manifest entries ordered by pathId, the
// order used by digest canonicalization and by getTrove's returned file
// list.
func (t *Trove) SortedManifest() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(t.Manifest))
	for _, e := range t.Manifest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return pathIDLess(out[i].PathID, out[j].PathID)
	})
	return out
}

func pathIDLess(a, b PathID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// SortedSubTroves returns sub-trove refs ordered by (name, version,
// flavor-string), the order used by digest canonicalization.
func (t *Trove) SortedSubTroves() []TroveRef {
	out := append([]TroveRef(nil), t.SubTroves...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if c := out[i].Version.Compare(out[j].Version); c != 0 {
			return c < 0
		}
		return out[i].Flavor.String() < out[j].Flavor.String()
	})
	return out
}

// IsComponent reports whether name is a component name (contains ':'),
// the ":source" component included, per §3 invariant 9; clone's
// component-rejection rule exempts ":source" through IsSourceComponent.
func IsComponent(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return true
		}
	}
	return false
}

// IsSourceComponent reports whether name is specifically the :source
// component, which clone's component check exempts.
func IsSourceComponent(name string) bool {
	const suffix = ":source"
	return len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix
}
