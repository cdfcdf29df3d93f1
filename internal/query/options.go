// Package query implements the read-side resolution engine: findTroves
// and its version/flavor-filter policies and affinity-aware best-flavor
// scoring, layered over internal/store. It has no path-based lookup.
package query

import "github.com/CourtJesterG/conary/internal/trove"

// VersionFilter controls which versions of a matching name/flavor survive
// the post-filter pass.
type VersionFilter int

const (
	VersionAll VersionFilter = iota
	VersionLatest
	VersionLeaves
)

// FlavorFilter controls how a spec's flavor constraint is applied.
type FlavorFilter int

const (
	FlavorAll FlavorFilter = iota
	FlavorAvail
	FlavorBest
	FlavorExact
)

// TroveTypeFilter controls which troveType values are eligible.
type TroveTypeFilter int

const (
	TroveTypesPresent TroveTypeFilter = iota // exclude Removed
	TroveTypesAll
	TroveTypesNormal // exclude Removed and Redirect
)

func (f TroveTypeFilter) accepts(t trove.TroveType) bool {
	switch f {
	case TroveTypesAll:
		return true
	case TroveTypesNormal:
		return t != trove.TypeRemoved && t != trove.TypeRedirect
	default:
		return t != trove.TypeRemoved
	}
}

// Options bundles every findTroves knob named in spec.md §4.7.
type Options struct {
	VersionFilter VersionFilter
	FlavorFilter  FlavorFilter
	AcrossLabels  bool
	AcrossFlavors bool
	Affinity      bool
	AllowMissing  bool
	BestFlavor    bool
	GetLeaves     bool
	TroveTypes    TroveTypeFilter
}

// DefaultOptions matches the reference client's common case: newest
// version per branch, any satisfying flavor, across every label.
func DefaultOptions() Options {
	return Options{
		VersionFilter: VersionLatest,
		FlavorFilter:  FlavorAvail,
		AcrossLabels:  true,
		AcrossFlavors: true,
		TroveTypes:    TroveTypesPresent,
	}
}
