// Package depset implements the dependency algebra: per-instance
// provides/requires sets of (class, name, flags) triples, with
// class-specific satisfaction rules, set difference/union, and a
// newline-delimited freeze format.
package depset

import (
	"sort"
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
)

// Class names a dependency class. Conary's classes are fixed by
// convention, not user-extensible, so they are plain strings rather than
// an enum — new classes can appear in frozen data from newer clients
// without breaking parsing.
type Class string

const (
	ClassSoname Class = "soname"
	ClassTrove  Class = "trove"
	ClassFile   Class = "file"
	ClassABI    Class = "abi"
	ClassUse    Class = "use"
	ClassIs     Class = "is"
)

// Dependency is a single (class, name, flags) triple.
type Dependency struct {
	Class Class
	Name  string
	Flags []string // sorted, deduplicated
}

// NewDependency builds a Dependency with its flags sorted and deduplicated.
func NewDependency(class Class, name string, flags ...string) Dependency {
	d := Dependency{Class: class, Name: name, Flags: normalizeFlags(flags)}
	return d
}

func normalizeFlags(flags []string) []string {
	if len(flags) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (d Dependency) String() string {
	if len(d.Flags) == 0 {
		return string(d.Class) + ": " + d.Name
	}
	return string(d.Class) + ": " + d.Name + "(" + strings.Join(d.Flags, " ") + ")"
}

// HasFlag reports whether d carries the given flag.
func (d Dependency) HasFlag(flag string) bool {
	for _, f := range d.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ParseDependency parses a single "class: name(flag flag)" or
// "class: name" dependency spec, as typed by a user or CLI front-end.
func ParseDependency(s string) (Dependency, error) {
	return parseDependency(s)
}

// parseDependency parses "class: name(flag flag)" or "class: name".
func parseDependency(s string) (Dependency, error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return Dependency{}, errs.Newf(errs.KindParse, "dependency %q missing class separator", s)
	}
	class := strings.TrimSpace(s[:colon])
	rest := strings.TrimSpace(s[colon+1:])
	if class == "" || rest == "" {
		return Dependency{}, errs.Newf(errs.KindParse, "dependency %q has an empty class or name", s)
	}
	name := rest
	var flags []string
	if open := strings.IndexByte(rest, '('); open >= 0 {
		if rest[len(rest)-1] != ')' {
			return Dependency{}, errs.Newf(errs.KindParse, "dependency %q has an unterminated flag list", s)
		}
		name = strings.TrimSpace(rest[:open])
		flagStr := rest[open+1 : len(rest)-1]
		if flagStr != "" {
			flags = strings.Fields(flagStr)
		}
	}
	if name == "" {
		return Dependency{}, errs.Newf(errs.KindParse, "dependency %q has an empty name", s)
	}
	return NewDependency(Class(class), name, flags...), nil
}

// Equal reports whether two dependencies are identical (class, name, and
// flag set).
func (d Dependency) Equal(o Dependency) bool {
	if d.Class != o.Class || d.Name != o.Name || len(d.Flags) != len(o.Flags) {
		return false
	}
	for i := range d.Flags {
		if d.Flags[i] != o.Flags[i] {
			return false
		}
	}
	return true
}

// satisfiesOne applies the class-specific matching rule: soname requires
// an exact (name, flags) match; trove matches by name only; use requires
// the provided flag set to be a superset of the required flags; all other
// classes default to exact match.
func satisfiesOne(required, provided Dependency) bool {
	if required.Class != provided.Class {
		return false
	}
	switch required.Class {
	case ClassTrove:
		return required.Name == provided.Name
	case ClassUse:
		if required.Name != provided.Name {
			return false
		}
		for _, f := range required.Flags {
			if !provided.HasFlag(f) {
				return false
			}
		}
		return true
	case ClassSoname:
		return required.Equal(provided)
	default:
		return required.Equal(provided)
	}
}
