package textnorm

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity scores how alike two terms are, in [0, 1]. Comparison is case
// insensitive and canonical-equal terms score exactly 1. Otherwise the score
// is the better of the edit-distance ratio on the terms and on their
// alphabetically sorted tokens, so "pain chest" and "chest pain" match.
func Similarity(a, b string) float64 {
	a, b = Canonical(a), Canonical(b)
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	score := editRatio(a, b)
	if sorted := editRatio(sortTokens(a), sortTokens(b)); sorted > score {
		score = sorted
	}
	return score
}

// editRatio is 1 - levenshtein(a, b) / max(len(a), len(b)), lengths in runes.
func editRatio(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
