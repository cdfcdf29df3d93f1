package query

import (
	"github.com/CourtJesterG/conary/internal/version"
)

// Spec is one entry of findTroves' input: a trove name with an optional
// version/branch/label constraint and an optional flavor constraint.
// Either Version or Label may be set, never both.
type Spec struct {
	Name    string
	Version *version.Version
	Label   *version.Label
	Flavor  *version.Flavor
}
