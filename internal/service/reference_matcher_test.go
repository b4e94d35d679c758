package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/reference"
)

func TestNewReferenceMatcher_Validation(t *testing.T) {
	_, err := NewReferenceMatcher(nil, 0.8, 0.75)
	assert.ErrorIs(t, err, domain.ErrEmptyReference)

	_, err = NewReferenceMatcher(testTable(), 0, 0.75)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	_, err = NewReferenceMatcher(testTable(), 0.8, 1.01)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	m, err := NewReferenceMatcher(testTable(), 1.0, 1.0)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestReferenceMatcher_MatchDrug(t *testing.T) {
	m, err := NewReferenceMatcher(testTable(), 0.8, 0.75)
	require.NoError(t, err)

	match, ok := m.MatchDrug("Aspirin")
	require.True(t, ok)
	assert.Equal(t, "aspirin", match.Record.DrugName)
	assert.Equal(t, 1.0, match.Score)

	match, ok = m.MatchDrug("asprin")
	require.True(t, ok)
	assert.Equal(t, "aspirin", match.Record.DrugName)
	assert.InDelta(t, 6.0/7.0, match.Score, 1e-9)

	_, ok = m.MatchDrug("metformin")
	assert.False(t, ok)
}

func TestReferenceMatcher_MatchDrugTieBreak(t *testing.T) {
	table, err := reference.NewTable([]domain.ReferenceRecord{
		{DrugName: "abd", ReactionTerms: []string{"rash"}},
		{DrugName: "abc", ReactionTerms: []string{"rash"}},
	})
	require.NoError(t, err)

	m, err := NewReferenceMatcher(table, 0.6, 0.75)
	require.NoError(t, err)

	match, ok := m.MatchDrug("abx")
	require.True(t, ok)
	assert.Equal(t, "abc", match.Record.DrugName)
}

func TestReferenceMatcher_MatchSymptomsTieBreak(t *testing.T) {
	table, err := reference.NewTable([]domain.ReferenceRecord{
		{DrugName: "aspirin", ReactionTerms: []string{"abd", "abc"}},
	})
	require.NoError(t, err)

	m, err := NewReferenceMatcher(table, 0.8, 0.6)
	require.NoError(t, err)

	record, ok := m.Table().Lookup("aspirin")
	require.True(t, ok)

	matches := m.MatchSymptoms(record, []string{"abx"})
	require.Len(t, matches, 1)
	assert.Equal(t, "abc", matches[0].Reaction)
	assert.InDelta(t, 2.0/3.0, matches[0].Score, 1e-9)
}

func TestReferenceMatcher_MatchSymptoms(t *testing.T) {
	m, err := NewReferenceMatcher(testTable(), 0.8, 0.75)
	require.NoError(t, err)

	record, ok := m.Table().Lookup("aspirin")
	require.True(t, ok)

	matches := m.MatchSymptoms(record, []string{"headaches", "cough", "nausea"})
	require.Len(t, matches, 2)
	assert.Equal(t, ReactionMatch{Symptom: "headaches", Reaction: "headache", Score: matches[0].Score}, matches[0])
	assert.InDelta(t, 8.0/9.0, matches[0].Score, 1e-9)
	assert.Equal(t, "nausea", matches[1].Reaction)
	assert.Equal(t, 1.0, matches[1].Score)
}

func TestReferenceMatcher_Match(t *testing.T) {
	m, err := NewReferenceMatcher(testTable(), 0.8, 0.75)
	require.NoError(t, err)

	t.Run("no symptoms means no candidates", func(t *testing.T) {
		candidates := m.Match([]string{"lisinopril"}, nil)
		assert.NotNil(t, candidates)
		assert.Empty(t, candidates)
	})

	t.Run("candidate per matching medicine in order", func(t *testing.T) {
		candidates := m.Match([]string{"aspirin", "metformin", "ibuprofen"}, []string{"nausea"})
		require.Len(t, candidates, 2)

		assert.Equal(t, "aspirin", candidates[0].Medicine)
		assert.Equal(t, domain.SeverityCritical, candidates[0].Severity)
		assert.Equal(t, "ibuprofen", candidates[1].Medicine)
		assert.Equal(t, domain.SeverityNeedsAttention, candidates[1].Severity)

		for _, c := range candidates {
			require.Len(t, c.MatchedSymptoms, 1)
			assert.Equal(t, domain.SeverityUnknown, c.MatchedSymptoms[0].PredictedSeverity)
		}
	})

	t.Run("matched drug without matching symptom is dropped", func(t *testing.T) {
		candidates := m.Match([]string{"lisinopril"}, []string{"nausea"})
		assert.Empty(t, candidates)
	})
}

func TestReferenceMatcher_Lookup(t *testing.T) {
	m, err := NewReferenceMatcher(testTable(), 0.8, 0.75)
	require.NoError(t, err)

	suggestions := m.Lookup("asprin", 2)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "aspirin", suggestions[0].DrugName)
	assert.True(t, suggestions[0].AboveCutoff)
	assert.Equal(t, 3, suggestions[0].ReactionCount)
	assert.False(t, suggestions[1].AboveCutoff)
	assert.GreaterOrEqual(t, suggestions[0].Score, suggestions[1].Score)

	assert.Len(t, m.Lookup("x", 0), 3)
}
