package decoder

import (
	"strings"
	"unicode"
)

// printable lists every Unicode category except C (other).
var printable = []*unicode.RangeTable{
	unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z,
}

// Sanitize strips control, format, private-use, surrogate and unassigned code
// points from payload. Everything else, delimiters included, is kept.
func Sanitize(payload string) string {
	return strings.Map(func(r rune) rune {
		if unicode.In(r, printable...) {
			return r
		}
		return -1
	}, payload)
}
