package depset

import (
	"bytes"
	"sort"
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
)

// Set is a collection of Dependencies, grouped by class for freezing.
type Set struct {
	deps []Dependency
}

// NewSet builds a Set from the given dependencies, deduplicating by
// (class, name): a later dependency replaces an earlier one's flags.
func NewSet(deps ...Dependency) Set {
	s := Set{}
	for _, d := range deps {
		s.add(d)
	}
	return s
}

func (s *Set) add(d Dependency) {
	for i, existing := range s.deps {
		if existing.Class == d.Class && existing.Name == d.Name {
			s.deps[i] = d // last write wins on flag set for identical (class,name)
			return
		}
	}
	s.deps = append(s.deps, d)
}

// Len returns the number of dependencies in the set.
func (s Set) Len() int { return len(s.deps) }

// Deps returns the set's dependencies sorted by (class, name).
func (s Set) Deps() []Dependency {
	out := append([]Dependency(nil), s.deps...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Union returns the set containing every dependency in either s or o; on
// a (class, name) collision, o's entry wins (o "layers over" s).
func Union(s, o Set) Set {
	out := NewSet(s.deps...)
	for _, d := range o.deps {
		out.add(d)
	}
	return out
}

// Difference returns the dependencies in s that are not satisfied by any
// dependency of the same (class, name) in o — "A − B" from the algebra.
func Difference(s, o Set) Set {
	out := Set{}
	for _, d := range s.deps {
		matched := false
		for _, od := range o.deps {
			if satisfiesOne(d, od) {
				matched = true
				break
			}
		}
		if !matched {
			out.add(d)
		}
	}
	return out
}

// Satisfies reports whether every dependency in required is satisfied by
// some dependency in provided, under each dependency's class-specific
// matching rule.
func Satisfies(required, provided Set) bool {
	return Difference(required, provided).Len() == 0
}

// Freeze produces the newline-delimited class-grouped freeze format:
// dependencies are grouped by class, each class group prefixed by its
// class name on its own line, followed by one dependency per line.
func (s Set) Freeze() []byte {
	byClass := map[Class][]Dependency{}
	var classes []Class
	for _, d := range s.Deps() {
		if _, ok := byClass[d.Class]; !ok {
			classes = append(classes, d.Class)
		}
		byClass[d.Class] = append(byClass[d.Class], d)
	}
	var buf bytes.Buffer
	for _, c := range classes {
		buf.WriteString(string(c))
		buf.WriteByte('\n')
		for _, d := range byClass[c] {
			buf.WriteByte('\t')
			buf.WriteString(d.Name)
			if len(d.Flags) > 0 {
				buf.WriteByte(':')
				buf.WriteString(strings.Join(d.Flags, ","))
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Thaw reverses Freeze.
func Thaw(b []byte) (Set, error) {
	s := Set{}
	var class Class
	for _, line := range strings.Split(string(b), "\n") {
		if line == "" {
			continue
		}
		if line[0] != '\t' {
			class = Class(line)
			continue
		}
		if class == "" {
			return Set{}, errs.New(errs.KindParse, "dependency freeze data has a flag line before any class header")
		}
		body := line[1:]
		name := body
		var flags []string
		if colon := strings.IndexByte(body, ':'); colon >= 0 {
			name = body[:colon]
			flags = strings.Split(body[colon+1:], ",")
		}
		s.add(NewDependency(class, name, flags...))
	}
	return s, nil
}

// Equal reports whether two sets contain the same dependencies.
func (s Set) Equal(o Set) bool {
	a, b := s.Deps(), o.Deps()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
