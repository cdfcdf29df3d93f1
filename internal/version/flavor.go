package version

import (
	"sort"
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
)

// Orientation is how a flavor assertion constrains a build.
type Orientation int

const (
	// Required means the flavor must hold.
	Required Orientation = iota
	// Prefer means the flavor is a soft preference used only for scoring.
	Prefer
	// Prohibit means the flavor must not hold.
	Prohibit
)

func (o Orientation) marker() string {
	switch o {
	case Prefer:
		return "~"
	case Prohibit:
		return "!"
	default:
		return ""
	}
}

// Assertion is a single dependency-class flag inside a flavor, e.g.
// "is: x86_64" or "~!mmx" under the "use" class.
type Assertion struct {
	Class       string
	Flag        string
	Orientation Orientation
}

func (a Assertion) String() string {
	return a.Orientation.marker() + a.Class + ": " + a.Flag
}

// Flavor is a set of dependency-class assertions characterizing a build.
// The zero value is the empty flavor, which satisfies every spec and
// scores 0 against anything.
type Flavor struct {
	assertions map[string]Assertion // key: Class+"\x00"+Flag
}

func key(class, flag string) string { return class + "\x00" + flag }

// Empty reports whether the flavor has no assertions.
func (f Flavor) Empty() bool { return len(f.assertions) == 0 }

// Assertions returns the flavor's assertions in a stable (class, flag)
// sorted order.
func (f Flavor) Assertions() []Assertion {
	out := make([]Assertion, 0, len(f.assertions))
	for _, a := range f.assertions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Flag < out[j].Flag
	})
	return out
}

func (f Flavor) String() string {
	parts := make([]string, 0, len(f.assertions))
	for _, a := range f.Assertions() {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}

// Parse parses a comma-separated flavor string such as
// "is: x86_64,~!mmx,use: readline".
func ParseFlavor(s string) (Flavor, error) {
	f := Flavor{assertions: map[string]Assertion{}}
	s = strings.TrimSpace(s)
	if s == "" {
		return f, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		orient := Required
		for len(part) > 0 && (part[0] == '~' || part[0] == '!') {
			switch part[0] {
			case '~':
				orient = Prefer
			case '!':
				if orient == Prefer {
					orient = Prohibit // "~!" == soft-prohibit, collapsed to Prohibit
				} else {
					orient = Prohibit
				}
			}
			part = part[1:]
		}
		colon := strings.IndexByte(part, ':')
		if colon < 0 {
			return Flavor{}, errs.Newf(errs.KindParse, "flavor assertion %q missing class", part)
		}
		class := strings.TrimSpace(part[:colon])
		flag := strings.TrimSpace(part[colon+1:])
		if class == "" || flag == "" {
			return Flavor{}, errs.Newf(errs.KindParse, "flavor assertion %q has an empty class or flag", part)
		}
		f.assertions[key(class, flag)] = Assertion{Class: class, Flag: flag, Orientation: orient}
	}
	return f, nil
}

// Freeze produces the stable binary form used as a DB key.
func (f Flavor) Freeze() []byte { return []byte(f.String()) }

// ThawFlavor reverses Freeze.
func ThawFlavor(b []byte) (Flavor, error) { return ParseFlavor(string(b)) }

// Satisfies reports whether concrete satisfies spec: every Required
// assertion in spec must be present (with matching orientation intent) in
// concrete, and every Prohibit assertion in spec must be absent from
// concrete as a Required/Prefer assertion.
func Satisfies(spec, concrete Flavor) bool {
	for _, a := range spec.Assertions() {
		ca, present := concrete.assertions[key(a.Class, a.Flag)]
		switch a.Orientation {
		case Required:
			if !present || ca.Orientation == Prohibit {
				return false
			}
		case Prohibit:
			if present && ca.Orientation != Prohibit {
				return false
			}
		case Prefer:
			// soft: never blocks satisfaction
		}
	}
	return true
}

// Score scores concrete against spec: higher is better, NoMatch when
// concrete does not satisfy spec. Each matching Required assertion scores
// 2, each matching Prefer assertion scores 1, mismatched Prefer scores 0.
const NoMatch = -1 << 30

func Score(spec, concrete Flavor) int {
	if !Satisfies(spec, concrete) {
		return NoMatch
	}
	score := 0
	for _, a := range spec.Assertions() {
		ca, present := concrete.assertions[key(a.Class, a.Flag)]
		switch a.Orientation {
		case Required:
			score += 2
		case Prefer:
			if present && ca.Orientation != Prohibit {
				score++
			}
		case Prohibit:
			// satisfied by absence; no score contribution
		}
	}
	return score
}

// Override returns a flavor where layer's assertions take precedence over
// base's on any (class, flag) overlap; base assertions not mentioned by
// layer pass through unchanged.
func Override(base, layer Flavor) Flavor {
	out := Flavor{assertions: map[string]Assertion{}}
	for k, a := range base.assertions {
		out.assertions[k] = a
	}
	for k, a := range layer.assertions {
		out.assertions[k] = a
	}
	return out
}

// Equal reports whether two flavors have identical assertion sets.
func (f Flavor) Equal(o Flavor) bool {
	if len(f.assertions) != len(o.assertions) {
		return false
	}
	for k, a := range f.assertions {
		oa, ok := o.assertions[k]
		if !ok || oa.Orientation != a.Orientation {
			return false
		}
	}
	return true
}
