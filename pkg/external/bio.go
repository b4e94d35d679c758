package external

import (
	"math"
	"strings"
)

// bioEntity is one entity decoded from token-level BIO labels.
type bioEntity struct {
	Text       string
	Label      string
	Score      float64
	StartToken int
	EndToken   int // exclusive
}

// fixBIOLegality rewrites every I-X tag that does not continue a B-X or I-X
// run into B-X.
func fixBIOLegality(labels []string) []string {
	fixed := make([]string, len(labels))
	copy(fixed, labels)

	for i, l := range fixed {
		if !strings.HasPrefix(l, "I-") {
			continue
		}
		entityType := l[2:]
		if i == 0 {
			fixed[i] = "B-" + entityType
			continue
		}
		prev := fixed[i-1]
		prevType := ""
		if strings.HasPrefix(prev, "B-") || strings.HasPrefix(prev, "I-") {
			prevType = prev[2:]
		}
		if prevType != entityType {
			fixed[i] = "B-" + entityType
		}
	}
	return fixed
}

// decodeBIO groups BIO labelled tokens into entities. WordPiece continuation
// tokens ("##ing") are glued to the previous token.
func decodeBIO(tokens, labels []string, probs [][]float64) []bioEntity {
	labels = fixBIOLegality(labels)
	entities := []bioEntity{}
	n := len(tokens)
	i := 0

	for i < n {
		label := labels[i]
		if !strings.HasPrefix(label, "B-") {
			i++
			continue
		}

		entityType := label[2:]
		startToken := i
		i++
		for i < n && labels[i] == "I-"+entityType {
			i++
		}
		endToken := i

		var text strings.Builder
		for j := startToken; j < endToken; j++ {
			token := tokens[j]
			if strings.HasPrefix(token, "##") {
				text.WriteString(token[2:])
				continue
			}
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(token)
		}

		entities = append(entities, bioEntity{
			Text:       text.String(),
			Label:      entityType,
			Score:      entityConfidence(probs, startToken, endToken),
			StartToken: startToken,
			EndToken:   endToken,
		})
	}
	return entities
}

// entityConfidence is the geometric mean of the per-token maximum
// probabilities over [startToken, endToken). Missing rows count as zero.
func entityConfidence(probs [][]float64, startToken, endToken int) float64 {
	n := endToken - startToken
	if n <= 0 {
		return 0
	}

	logSum := 0.0
	for i := startToken; i < endToken; i++ {
		if i >= len(probs) {
			return 0
		}
		p := maxProbability(probs[i])
		if p <= 0 {
			return 0
		}
		logSum += math.Log(p)
	}
	return math.Exp(logSum / float64(n))
}

func maxProbability(row []float64) float64 {
	best := 0.0
	for _, p := range row {
		if p > best {
			best = p
		}
	}
	return best
}

// locate finds entity text in the original text, searching forward from
// cursor, case-insensitively. It returns -1 offsets when not found.
func locate(lowered, entity string, cursor int) (start, end int) {
	if cursor > len(lowered) {
		cursor = len(lowered)
	}
	needle := strings.ToLower(entity)
	if idx := strings.Index(lowered[cursor:], needle); idx >= 0 {
		return cursor + idx, cursor + idx + len(needle)
	}
	return -1, -1
}
