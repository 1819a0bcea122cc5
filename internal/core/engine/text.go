package engine

import (
	"strings"
	"unicode"
)

// normalize lower-cases s, trims it and collapses inner whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// containsTerm reports whether term occurs anywhere in text, so inflected
// forms such as plurals still count. Both arguments are expected to be
// lower-cased already.
func containsTerm(text, term string) bool {
	return term != "" && strings.Contains(text, term)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !isWordRune(r) })
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// IdentityMatch is the party-name rule shared by the validators: after trimming
// and lower-casing, the names are equal or one contains the other. Empty names
// never match.
func IdentityMatch(a, b string) bool {
	x, y := normalize(a), normalize(b)
	if x == "" || y == "" {
		return false
	}
	return x == y || strings.Contains(x, y) || strings.Contains(y, x)
}

// Similarity is the Sørensen–Dice coefficient over character bigrams.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}
	if a == b {
		return 1
	}
	left, right := bigrams(ra), bigrams(rb)
	counts := make(map[string]int, len(left))
	for _, g := range left {
		counts[g]++
	}
	shared := 0
	for _, g := range right {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(left)+len(right))
}

func bigrams(runes []rune) []string {
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
