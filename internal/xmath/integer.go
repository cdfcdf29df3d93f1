// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package xmath holds small numeric helpers shared by the version algebra
// and clone's revision bump.
package xmath

import "strconv"

// ParseUint64 parses s as a decimal integer. The empty string parses as
// zero, matching an absent revision component.
func ParseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// CompareDotted compares two dotted-decimal strings ("1.2.10" vs "1.2.9")
// component by component, numerically, so "10" sorts after "9". Shorter
// sequences compare as smaller than longer ones when all shared components
// are equal ("1.2" < "1.2.0").
func CompareDotted(a, b string) int {
	as := splitDotted(a)
	bs := splitDotted(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, aok := ParseUint64(as[i])
		bv, bok := ParseUint64(bs[i])
		switch {
		case aok && bok:
			if av != bv {
				if av < bv {
					return -1
				}
				return 1
			}
		default:
			// non-numeric component: fall back to lexicographic
			if as[i] != bs[i] {
				if as[i] < bs[i] {
					return -1
				}
				return 1
			}
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

func splitDotted(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// CeilDiv returns ceil(x/y). Returns 0 when y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}
