package access

import (
	"regexp"
	"strings"
	"sync"
)

// matchGlob reports whether s matches pattern using '*'/'?' wildcard
// semantics with no path-segment anchoring (spec.md §4.8): unlike
// path.Match or filepath.Match, '/' and '@' are ordinary characters, not
// separators the wildcards refuse to cross. The ecosystem's ryanuber/
// go-glob (pulled in transitively elsewhere in this pack) only supports
// '*', not '?', so patterns are translated to an anchored regexp instead.
func matchGlob(pattern, s string) bool {
	re, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

var globCache sync.Map // pattern string -> *regexp.Regexp

func compileGlob(pattern string) (*regexp.Regexp, error) {
	if re, ok := globCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	globCache.Store(pattern, re)
	return re, nil
}
