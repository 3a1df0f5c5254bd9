package matching

import (
	"strings"
	"unicode"
)

// Tokenize lowercases a name and splits it on every non-alphanumeric rune,
// so "eSAE_Dashboard-Report.xlsx" and "esae dashboard report" normalize to
// the same token set.
func Tokenize(name string) []string {
	lower := strings.ToLower(name)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeHeader canonicalizes a column header for set comparison:
// lowercase, punctuation collapsed to single underscores.
func NormalizeHeader(header string) string {
	return strings.Join(Tokenize(header), "_")
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b| over two normalized string sets. Two empty
// sets are treated as disjoint, not identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
