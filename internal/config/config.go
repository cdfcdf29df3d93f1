// Package config implements the typed configuration-option surface from
// spec.md §6: each option type knows how to parse itself from a string
// and how to format itself back, so a repository config file round-trips
// through the same types whether it arrives as YAML or as a single
// assignment line.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
)

// Type parses and formats one configuration value. Implementations hold
// no configuration state themselves — CfgBool, CfgInt, and friends are
// stateless value-type descriptors, not config items.
type Type interface {
	// ParseString converts a raw assignment string into the Go value
	// this option type stores.
	ParseString(s string) (any, error)
	// Format renders val back to its string form.
	Format(val any) string
}

// CfgBool accepts true/false/1/0, case-insensitively, per §6.
type CfgBool struct{}

func (CfgBool) ParseString(s string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return nil, errs.Newf(errs.KindParse, "expected true/false/1/0, got %q", s)
	}
}

func (CfgBool) Format(val any) string {
	if val.(bool) {
		return "true"
	}
	return "false"
}

// CfgString is the identity option type: the original CfgType base
// behaves this way directly, so it has no separate struct there, but Go
// has no implicit-base-class conversion to lean on.
type CfgString struct{}

func (CfgString) ParseString(s string) (any, error) { return s, nil }
func (CfgString) Format(val any) string              { return val.(string) }

// CfgInt parses a plain decimal integer.
type CfgInt struct{}

func (CfgInt) ParseString(s string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, errs.Wrapf(errs.KindParse, err, "expected integer, got %q", s)
	}
	return n, nil
}

func (CfgInt) Format(val any) string { return strconv.Itoa(val.(int)) }

// CfgPath expands ~ and $VAR references, the way a shell would, per §6.
type CfgPath struct{}

func (CfgPath) ParseString(s string) (any, error) {
	expanded := os.ExpandEnv(s)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "expand ~ in path")
		}
		expanded = home + expanded[1:]
	}
	return PathValue{Expanded: expanded, Raw: s}, nil
}

func (CfgPath) Format(val any) string { return val.(PathValue).Raw }

// PathValue keeps both the original and expanded form, so Format can
// round-trip the unexpanded string the way §6 requires.
type PathValue struct {
	Raw      string
	Expanded string
}

// CfgEnum validates against a case-insensitive set of valid values and
// stores the canonical (as-declared) spelling.
type CfgEnum struct {
	ValidValues []string
}

func (e CfgEnum) ParseString(s string) (any, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, v := range e.ValidValues {
		if strings.ToLower(v) == needle {
			return v, nil
		}
	}
	return nil, errs.Newf(errs.KindParse, "%q not in: %s", s, strings.Join(e.ValidValues, "|"))
}

func (CfgEnum) Format(val any) string { return val.(string) }

// CfgRegExp stores a pattern alongside its compiled form, per §6.
type CfgRegExp struct{}

// RegExpValue is the value a CfgRegExp option holds: the original pattern
// text plus its compiled form, so Format can recover the source text.
type RegExpValue struct {
	Pattern  string
	Compiled *regexp.Regexp
}

func (CfgRegExp) ParseString(s string) (any, error) {
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, errs.Wrapf(errs.KindParse, err, "invalid regexp %q", s)
	}
	return RegExpValue{Pattern: s, Compiled: re}, nil
}

func (CfgRegExp) Format(val any) string { return val.(RegExpValue).Pattern }

// CfgList parses a value as a single-element append to a list: repeated
// assignment to the same key accumulates entries, per §6 and the
// original `CfgList.updateFromString` semantics.
type CfgList struct{ Elem Type }

func (l CfgList) ParseString(s string) (any, error) {
	v, err := l.Elem.ParseString(s)
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func (l CfgList) Format(val any) string {
	items := val.([]any)
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = l.Elem.Format(it)
	}
	return strings.Join(parts, ", ")
}

// CfgLineList parses a whole value string as separator-delimited
// elements in one shot, unlike CfgList's accumulate-per-assignment model.
type CfgLineList struct {
	Elem      Type
	Separator string
}

func (l CfgLineList) ParseString(s string) (any, error) {
	sep := l.Separator
	if sep == "" {
		sep = " "
	}
	var out []any
	for _, piece := range strings.Split(s, sep) {
		if piece == "" {
			continue
		}
		v, err := l.Elem.ParseString(piece)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l CfgLineList) Format(val any) string {
	items := val.([]any)
	sep := l.Separator
	if sep == "" {
		sep = " "
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = l.Elem.Format(it)
	}
	return strings.Join(parts, sep)
}

// CfgRegExpList is a CfgLineList of CfgRegExp with an added Match helper,
// mirroring the original RegularExpressionList's `match(s)` convenience.
type CfgRegExpList struct{ inner CfgLineList }

// NewCfgRegExpList builds a CfgRegExpList separated by whitespace.
func NewCfgRegExpList() CfgRegExpList {
	return CfgRegExpList{inner: CfgLineList{Elem: CfgRegExp{}, Separator: " "}}
}

func (l CfgRegExpList) ParseString(s string) (any, error) { return l.inner.ParseString(s) }
func (l CfgRegExpList) Format(val any) string              { return l.inner.Format(val) }

// Match reports whether s matches any pattern in a parsed CfgRegExpList
// value.
func Match(val any, s string) bool {
	for _, it := range val.([]any) {
		if it.(RegExpValue).Compiled.MatchString(s) {
			return true
		}
	}
	return false
}

// CfgDict parses "key value" assignment lines into a map, per §6.
type CfgDict struct{ Elem Type }

func (d CfgDict) ParseString(s string) (any, error) {
	key, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	v, err := d.Elem.ParseString(strings.TrimSpace(rest))
	if err != nil {
		return nil, err
	}
	return map[string]any{key: v}, nil
}

func (d CfgDict) Format(val any) string {
	m := val.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %s", k, d.Elem.Format(m[k]))
	}
	return strings.Join(parts, "\n")
}

// CfgEnumDict validates both the key and the value against per-key
// allowed-value sets, per the original CfgEnumDict.checkEntry.
type CfgEnumDict struct {
	Elem        Type
	ValidValues map[string][]string
}

func (d CfgEnumDict) ParseString(s string) (any, error) {
	key, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	lk := strings.ToLower(key)
	allowed, ok := d.ValidValues[lk]
	if !ok {
		return nil, errs.Newf(errs.KindParse, "invalid key %q", key)
	}
	val := strings.ToLower(strings.TrimSpace(rest))
	found := false
	for _, a := range allowed {
		if strings.ToLower(a) == val {
			found = true
			break
		}
	}
	if !found {
		return nil, errs.Newf(errs.KindParse, "invalid value %q for key %s", rest, key)
	}
	return map[string]any{lk: val}, nil
}

func (d CfgEnumDict) Format(val any) string { return CfgDict{Elem: d.Elem}.Format(val) }

// CfgCallBack runs a side-effecting function on assignment instead of
// storing a value, per §6.
type CfgCallBack struct {
	Fn func(s string) error
}

func (c CfgCallBack) ParseString(s string) (any, error) {
	if c.Fn != nil {
		if err := c.Fn(s); err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "config callback")
		}
	}
	return s, nil
}

func (CfgCallBack) Format(val any) string { return fmt.Sprint(val) }
