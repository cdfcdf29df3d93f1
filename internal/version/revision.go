package version

import (
	"strconv"
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/xmath"
)

// Revision is "[epoch:]upstream-sourceCount-buildCount".
type Revision struct {
	Epoch       uint64
	Upstream    string
	SourceCount string
	BuildCount  string
}

func (r Revision) String() string {
	var sb strings.Builder
	if r.Epoch != 0 {
		sb.WriteString(strconv.FormatUint(r.Epoch, 10))
		sb.WriteByte(':')
	}
	sb.WriteString(r.Upstream)
	sb.WriteByte('-')
	sb.WriteString(r.SourceCount)
	sb.WriteByte('-')
	sb.WriteString(r.BuildCount)
	return sb.String()
}

// ParseRevision parses "[epoch:]upstream-sourceCount-buildCount".
func ParseRevision(s string) (Revision, error) {
	var epoch uint64
	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		e, ok := xmath.ParseUint64(s[:colon])
		if !ok {
			return Revision{}, errs.Newf(errs.KindParse, "revision %q has a malformed epoch", s)
		}
		epoch = e
		s = s[colon+1:]
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return Revision{}, errs.Newf(errs.KindParse, "revision %q must be upstream-sourceCount-buildCount", s)
	}
	if parts[0] == "" {
		return Revision{}, errs.Newf(errs.KindParse, "revision %q has an empty upstream version", s)
	}
	return Revision{Epoch: epoch, Upstream: parts[0], SourceCount: parts[1], BuildCount: parts[2]}, nil
}

// Compare orders revisions by epoch, then upstream (dotted-decimal), then
// source-count, then build-count, all numerically where possible.
func (r Revision) Compare(o Revision) int {
	if r.Epoch != o.Epoch {
		if r.Epoch < o.Epoch {
			return -1
		}
		return 1
	}
	if c := xmath.CompareDotted(r.Upstream, o.Upstream); c != 0 {
		return c
	}
	if c := xmath.CompareDotted(r.SourceCount, o.SourceCount); c != 0 {
		return c
	}
	return xmath.CompareDotted(r.BuildCount, o.BuildCount)
}

// Equal reports whether two revisions compare as identical.
func (r Revision) Equal(o Revision) bool { return r.Compare(o) == 0 }
