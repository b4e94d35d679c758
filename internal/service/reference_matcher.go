package service

import (
	"fmt"
	"sort"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/reference"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// Default match thresholds.
const (
	DefaultDrugMatchThreshold    = 0.8
	DefaultSymptomMatchThreshold = 0.75
)

// ReferenceMatcher fuzzy-matches extracted medicines and symptoms against the
// reference reaction table. It holds no mutable state.
type ReferenceMatcher struct {
	table            *reference.Table
	drugThreshold    float64
	symptomThreshold float64
}

// DrugMatch is the best reference drug for a medicine.
type DrugMatch struct {
	Record domain.ReferenceRecord
	Score  float64
}

// ReactionMatch is the best reference reaction for a symptom.
type ReactionMatch struct {
	Symptom  string
	Reaction string
	Score    float64
}

// NewReferenceMatcher validates thresholds and returns a matcher over table.
func NewReferenceMatcher(table *reference.Table, drugThreshold, symptomThreshold float64) (*ReferenceMatcher, error) {
	if table == nil || table.Len() == 0 {
		return nil, domain.ErrEmptyReference
	}
	if drugThreshold <= 0 || drugThreshold > 1 {
		return nil, fmt.Errorf("drug match threshold %v: %w", drugThreshold, domain.ErrInvalidThreshold)
	}
	if symptomThreshold <= 0 || symptomThreshold > 1 {
		return nil, fmt.Errorf("symptom match threshold %v: %w", symptomThreshold, domain.ErrInvalidThreshold)
	}
	return &ReferenceMatcher{
		table:            table,
		drugThreshold:    drugThreshold,
		symptomThreshold: symptomThreshold,
	}, nil
}

// MatchDrug returns the reference drug most similar to medicine when the
// similarity reaches the drug threshold. Ties go to the lexicographically
// smaller drug name.
func (m *ReferenceMatcher) MatchDrug(medicine string) (DrugMatch, bool) {
	var best DrugMatch
	found := false
	// Records are sorted by name, so a strict comparison keeps the smaller name on ties.
	for _, record := range m.table.Records() {
		score := textnorm.Similarity(medicine, record.DrugName)
		if !found || score > best.Score {
			best = DrugMatch{Record: record, Score: score}
			found = true
		}
	}
	if !found || best.Score < m.drugThreshold {
		return DrugMatch{}, false
	}
	return best, true
}

// MatchSymptoms pairs each symptom with its most similar reaction term of
// record, keeping pairs that reach the symptom threshold. Ties go to the
// lexicographically smaller reaction term.
func (m *ReferenceMatcher) MatchSymptoms(record domain.ReferenceRecord, symptoms []string) []ReactionMatch {
	var matches []ReactionMatch
	for _, symptom := range symptoms {
		var best ReactionMatch
		found := false
		for _, reaction := range record.ReactionTerms {
			score := textnorm.Similarity(symptom, reaction)
			if !found || score > best.Score {
				best = ReactionMatch{Symptom: symptom, Reaction: reaction, Score: score}
				found = true
			}
		}
		if found && best.Score >= m.symptomThreshold {
			matches = append(matches, best)
		}
	}
	return matches
}

// Match produces one candidate per medicine that matches a reference drug and
// has at least one matched symptom, in medicine order. Severity predictions
// are left unset for the scorer to fill in.
func (m *ReferenceMatcher) Match(medicines, symptoms []string) []domain.AdverseEventCandidate {
	candidates := make([]domain.AdverseEventCandidate, 0)
	for _, medicine := range medicines {
		drug, ok := m.MatchDrug(medicine)
		if !ok {
			continue
		}
		reactions := m.MatchSymptoms(drug.Record, symptoms)
		if len(reactions) == 0 {
			continue
		}

		matched := make([]domain.MatchedSymptom, 0, len(reactions))
		for _, reaction := range reactions {
			matched = append(matched, domain.MatchedSymptom{
				Symptom:           reaction.Symptom,
				MatchedReaction:   reaction.Reaction,
				MatchScore:        reaction.Score,
				PredictedSeverity: domain.SeverityUnknown,
			})
		}

		candidates = append(candidates, domain.AdverseEventCandidate{
			Medicine:            medicine,
			MatchedDrug:         drug.Record.DrugName,
			DrugMatchConfidence: drug.Score,
			Severity:            drug.Record.Severity,
			MatchedSymptoms:     matched,
		})
	}
	return candidates
}

// DrugSuggestion is one ranked result of a reference drug lookup.
type DrugSuggestion struct {
	DrugName      string          `json:"drug_name"`
	Score         float64         `json:"score"`
	Severity      domain.Severity `json:"severity"`
	ReactionCount int             `json:"reaction_count"`
	AboveCutoff   bool            `json:"above_threshold"`
}

// Lookup ranks reference drugs by similarity to query, best first, ties by name.
func (m *ReferenceMatcher) Lookup(query string, limit int) []DrugSuggestion {
	records := m.table.Records()
	suggestions := make([]DrugSuggestion, 0, len(records))
	for _, record := range records {
		score := textnorm.Similarity(query, record.DrugName)
		suggestions = append(suggestions, DrugSuggestion{
			DrugName:      record.DrugName,
			Score:         score,
			Severity:      record.Severity,
			ReactionCount: len(record.ReactionTerms),
			AboveCutoff:   score >= m.drugThreshold,
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// Table returns the reference table the matcher reads from.
func (m *ReferenceMatcher) Table() *reference.Table {
	return m.table
}
