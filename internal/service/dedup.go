package service

import (
	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// DefaultConfidenceThreshold is the minimum entity score kept by FilterByConfidence.
const DefaultConfidenceThreshold = 0.7

// FilterByConfidence returns the text of every span whose score is at least
// threshold. The boundary is inclusive.
func FilterByConfidence(spans []domain.EntitySpan, threshold float64) []string {
	out := make([]string, 0, len(spans))
	for _, span := range spans {
		if span.Score >= threshold {
			out = append(out, span.Text)
		}
	}
	return out
}

// Merge unions any number of term sequences into one canonical, duplicate-free,
// ascending sequence.
func Merge(sequences ...[]string) []string {
	var total int
	for _, seq := range sequences {
		total += len(seq)
	}
	all := make([]string, 0, total)
	for _, seq := range sequences {
		all = append(all, seq...)
	}
	return textnorm.UniqueSorted(all)
}
