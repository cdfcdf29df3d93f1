package version

import (
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
)

// Version is a full version string: an alternating sequence of Label and
// Revision components ending in a Revision, e.g.
// "/example.com@ns:1/1.0-1-1" or, after a shadow/branch operation,
// "/example.com@ns:1//example.com@ns:2/1.0-1-1".
//
// finalTimestamp breaks ties between otherwise-identical revisions that
// were rebuilt more than once; it is not part of the comparable identity
// of a version string, only of its ordering among rebuilds.
type Version struct {
	labels         []Label
	revision       Revision
	finalTimestamp float64
}

// New constructs a Version from its branch labels and trailing revision.
func New(labels []Label, rev Revision) Version {
	return Version{labels: append([]Label(nil), labels...), revision: rev}
}

// Parse parses a full version string "/label(/label)*/revision".
func Parse(s string) (Version, error) {
	if s == "" || s[0] != '/' {
		return Version{}, errs.Newf(errs.KindParse, "version %q must begin with '/'", s)
	}
	segs := strings.Split(s[1:], "/")
	if len(segs) < 2 {
		return Version{}, errs.Newf(errs.KindParse, "version %q needs at least one label and a revision", s)
	}
	labels := make([]Label, 0, len(segs)-1)
	for _, seg := range segs[:len(segs)-1] {
		l, err := ParseLabel(seg)
		if err != nil {
			return Version{}, err
		}
		labels = append(labels, l)
	}
	rev, err := ParseRevision(segs[len(segs)-1])
	if err != nil {
		return Version{}, err
	}
	return Version{labels: labels, revision: rev}, nil
}

func (v Version) String() string {
	var sb strings.Builder
	for _, l := range v.labels {
		sb.WriteByte('/')
		sb.WriteString(l.String())
	}
	sb.WriteByte('/')
	sb.WriteString(v.revision.String())
	return sb.String()
}

// Branch returns the branch this version's revision was built on: its
// label sequence minus the trailing revision.
func (v Version) Branch() Branch {
	return Branch{Labels: append([]Label(nil), v.labels...)}
}

// TrailingLabel returns the last label of the version's branch.
func (v Version) TrailingLabel() Label {
	return v.labels[len(v.labels)-1]
}

// TrailingRevision returns the version's revision component.
func (v Version) TrailingRevision() Revision {
	return v.revision
}

// FinalTimestamp returns the timestamp used to break ties between
// otherwise-identical revisions across rebuilds.
func (v Version) FinalTimestamp() float64 { return v.finalTimestamp }

// WithFinalTimestamp returns a copy of v carrying the given final timestamp.
func (v Version) WithFinalTimestamp(ts float64) Version {
	v.finalTimestamp = ts
	return v
}

// Parent returns the version one branch/shadow level up — the version
// obtained by dropping the trailing label, keeping the same revision. It
// is used to walk a cloned or shadowed version back toward its source.
func (v Version) Parent() (Version, bool) {
	if len(v.labels) <= 1 {
		return Version{}, false
	}
	return Version{labels: append([]Label(nil), v.labels[:len(v.labels)-1]...), revision: v.revision}, true
}

// Equal reports whether two versions have identical label sequences and
// revisions (finalTimestamp is not part of identity).
func (v Version) Equal(o Version) bool {
	if len(v.labels) != len(o.labels) {
		return false
	}
	for i := range v.labels {
		if !v.labels[i].Equal(o.labels[i]) {
			return false
		}
	}
	return v.revision.Equal(o.revision)
}

// Compare orders two versions by the longest shared branch prefix, then by
// revision ordering, then — only when revisions are otherwise identical —
// by finalTimestamp, so that two rebuilds of the same revision still have
// a deterministic order.
//
// Versions on unrelated branches (no shared prefix, or a shared prefix
// that is not a full branch match for either side) are ordered by their
// trailing revision alone; this lets findTroves order "all matching
// versions" even across branches for display purposes, though branch
// membership should generally be checked separately.
func (v Version) Compare(o Version) int {
	shared := SharedPrefixLen(v.Branch(), o.Branch())
	vOnBranch := shared == len(v.labels)
	oOnBranch := shared == len(o.labels)
	if vOnBranch && oOnBranch {
		if c := v.revision.Compare(o.revision); c != 0 {
			return c
		}
		switch {
		case v.finalTimestamp < o.finalTimestamp:
			return -1
		case v.finalTimestamp > o.finalTimestamp:
			return 1
		default:
			return 0
		}
	}
	// Different branches: fall back to revision-only comparison so a
	// deterministic total order still exists for sorting mixed sets.
	if c := v.revision.Compare(o.revision); c != 0 {
		return c
	}
	return strings.Compare(v.String(), o.String())
}

// OnBranch reports whether v was built directly on branch b (its label
// sequence equals b's, exactly).
func (v Version) OnBranch(b Branch) bool {
	return v.Branch().Equal(b)
}

// Freeze produces a stable, reversible binary form used as a DB key and
// as the wire form inside changesets.
func (v Version) Freeze() []byte {
	return []byte(v.String() + "#" + formatFloat(v.finalTimestamp))
}

// Thaw reverses Freeze.
func Thaw(b []byte) (Version, error) {
	s := string(b)
	hash := strings.LastIndexByte(s, '#')
	if hash < 0 {
		return Parse(s)
	}
	v, err := Parse(s[:hash])
	if err != nil {
		return Version{}, err
	}
	ts, ok := parseFloat(s[hash+1:])
	if !ok {
		return Version{}, errs.Newf(errs.KindParse, "frozen version %q has a malformed timestamp", s)
	}
	return v.WithFinalTimestamp(ts), nil
}
