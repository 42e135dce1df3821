package catalog

import (
	"strings"
	"unicode"
)

type trigram [3]rune

// trigrams extracts the pg_trgm trigram set of s: lower-cased alphanumeric
// words, each padded with two leading blanks and one trailing blank.
func trigrams(s string) map[trigram]struct{} {
	set := make(map[trigram]struct{})
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := append([]rune{' ', ' '}, []rune(w)...)
		padded = append(padded, ' ')
		for i := 0; i+3 <= len(padded); i++ {
			set[trigram{padded[i], padded[i+1], padded[i+2]}] = struct{}{}
		}
	}
	return set
}

// Similarity returns the pg_trgm similarity of a and b in [0, 1]: shared
// trigrams over the union of both trigram sets.
func Similarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}
