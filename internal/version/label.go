// Package version implements the trove version/label/branch/flavor algebra:
// parsing, comparison, freeze/thaw, and flavor scoring.
package version

import (
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
)

// Label is a host+namespace+branch-tag triple appearing inside a version,
// written "host@namespace:tag".
type Label struct {
	Host      string
	Namespace string
	Tag       string
}

func (l Label) String() string {
	return l.Host + "@" + l.Namespace + ":" + l.Tag
}

// ParseLabel parses "host@namespace:tag".
func ParseLabel(s string) (Label, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return Label{}, errs.Newf(errs.KindParse, "label %q missing '@'", s)
	}
	host := s[:at]
	rest := s[at+1:]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return Label{}, errs.Newf(errs.KindParse, "label %q missing ':'", s)
	}
	ns, tag := rest[:colon], rest[colon+1:]
	if host == "" || ns == "" || tag == "" {
		return Label{}, errs.Newf(errs.KindParse, "label %q has an empty component", s)
	}
	return Label{Host: host, Namespace: ns, Tag: tag}, nil
}

// Equal reports whether two labels are identical.
func (l Label) Equal(o Label) bool {
	return l.Host == o.Host && l.Namespace == o.Namespace && l.Tag == o.Tag
}

// Branch is an ordered sequence of labels defining a lineage. The last
// label is the branch's "trailing" label.
type Branch struct {
	Labels []Label
}

func (b Branch) String() string {
	parts := make([]string, len(b.Labels))
	for i, l := range b.Labels {
		parts[i] = l.String()
	}
	return strings.Join(parts, "/")
}

// ParseBranch parses a '/'-separated sequence of labels.
func ParseBranch(s string) (Branch, error) {
	segs := strings.Split(s, "/")
	labels := make([]Label, 0, len(segs))
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		l, err := ParseLabel(seg)
		if err != nil {
			return Branch{}, err
		}
		labels = append(labels, l)
	}
	if len(labels) == 0 {
		return Branch{}, errs.Newf(errs.KindParse, "branch %q has no labels", s)
	}
	return Branch{Labels: labels}, nil
}

// TrailingLabel returns the last label of the branch.
func (b Branch) TrailingLabel() Label {
	return b.Labels[len(b.Labels)-1]
}

// Equal reports whether two branches have identical label sequences.
func (b Branch) Equal(o Branch) bool {
	if len(b.Labels) != len(o.Labels) {
		return false
	}
	for i := range b.Labels {
		if !b.Labels[i].Equal(o.Labels[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether b starts with the labels of prefix, in order.
func (b Branch) HasPrefix(prefix Branch) bool {
	if len(prefix.Labels) > len(b.Labels) {
		return false
	}
	for i := range prefix.Labels {
		if !b.Labels[i].Equal(prefix.Labels[i]) {
			return false
		}
	}
	return true
}

// SharedPrefixLen returns the number of labels the two branches share from
// the start, used to find the longest common branch prefix during version
// comparison.
func SharedPrefixLen(a, b Branch) int {
	n := len(a.Labels)
	if len(b.Labels) < n {
		n = len(b.Labels)
	}
	i := 0
	for i < n && a.Labels[i].Equal(b.Labels[i]) {
		i++
	}
	return i
}

// Parent returns the branch with its trailing label removed, or false if
// the branch has only one label (the root of a lineage has no parent).
func (b Branch) Parent() (Branch, bool) {
	if len(b.Labels) <= 1 {
		return Branch{}, false
	}
	return Branch{Labels: append([]Label(nil), b.Labels[:len(b.Labels)-1]...)}, true
}
