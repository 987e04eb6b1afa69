package dataset

import (
	"sort"
	"strings"
)

// NaturalLess reports whether a sorts before b under natural ordering:
// the names are split into alternating runs of digits and non-digits,
// digit runs compare numerically and non-digit runs compare
// case-insensitively. "img2.jpg" sorts before "img10.jpg".
func NaturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		aRun, aDigit, aRest := nextRun(a)
		bRun, bDigit, bRest := nextRun(b)

		switch {
		case aDigit && bDigit:
			if c := compareNumeric(aRun, bRun); c != 0 {
				return c < 0
			}
		case !aDigit && !bDigit:
			al, bl := strings.ToLower(aRun), strings.ToLower(bRun)
			if al != bl {
				return al < bl
			}
		default:
			// Mixed run kinds: digits order before text. Arbitrary but
			// fixed, so the ordering stays total and deterministic.
			return aDigit
		}
		a, b = aRest, bRest
	}
	return len(a) < len(b)
}

// SortNatural sorts names in place using NaturalLess. The sort is
// stable so equal keys keep their input order.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return NaturalLess(names[i], names[j])
	})
}

// nextRun splits off the leading run of s, reporting whether it is a
// digit run and returning the remainder.
func nextRun(s string) (run string, digit bool, rest string) {
	digit = isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], digit, s[i:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// compareNumeric compares two digit runs by value without overflow:
// strip leading zeros, then longer run wins, then lexical order.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
