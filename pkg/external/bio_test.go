package external

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixBIOLegality(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"leading I becomes B", []string{"I-DRUG", "I-DRUG"}, []string{"B-DRUG", "I-DRUG"}},
		{"I after O becomes B", []string{"O", "I-SYMPTOM"}, []string{"O", "B-SYMPTOM"}},
		{"I after other type becomes B", []string{"B-DRUG", "I-SYMPTOM"}, []string{"B-DRUG", "B-SYMPTOM"}},
		{"legal sequence unchanged", []string{"B-DRUG", "I-DRUG", "O"}, []string{"B-DRUG", "I-DRUG", "O"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]string(nil), tt.labels...)
			assert.Equal(t, tt.want, fixBIOLegality(input))
			assert.Equal(t, tt.labels, input, "input must not be modified")
		})
	}
}

func TestDecodeBIO(t *testing.T) {
	tokens := []string{"i", "take", "as", "##pi", "##rin", "and", "feel", "very", "dizzy"}
	labels := []string{"O", "O", "B-DRUG", "I-DRUG", "I-DRUG", "O", "O", "I-SYMPTOM", "I-SYMPTOM"}
	probs := [][]float64{
		{0.99}, {0.98}, {0.9, 0.1}, {0.2, 0.8}, {0.9}, {0.97}, {0.95}, {0.5, 0.5}, {0.8},
	}

	entities := decodeBIO(tokens, labels, probs)
	require.Len(t, entities, 2)

	assert.Equal(t, "aspirin", entities[0].Text)
	assert.Equal(t, "DRUG", entities[0].Label)
	assert.Equal(t, 2, entities[0].StartToken)
	assert.Equal(t, 5, entities[0].EndToken)
	assert.InDelta(t, math.Cbrt(0.9*0.8*0.9), entities[0].Score, 1e-9)

	assert.Equal(t, "very dizzy", entities[1].Text)
	assert.Equal(t, "SYMPTOM", entities[1].Label)
	assert.InDelta(t, math.Sqrt(0.5*0.8), entities[1].Score, 1e-9)
}

func TestEntityConfidence(t *testing.T) {
	assert.Equal(t, 0.0, entityConfidence(nil, 0, 0))
	assert.Equal(t, 0.0, entityConfidence([][]float64{{0.9}}, 0, 2), "missing probability rows score zero")
	assert.Equal(t, 0.0, entityConfidence([][]float64{{0}}, 0, 1))
	assert.InDelta(t, 0.7, entityConfidence([][]float64{{0.7, 0.3}}, 0, 1), 1e-9)
}

func TestLocate(t *testing.T) {
	lowered := "aspirin then aspirin"
	start, end := locate(lowered, "Aspirin", 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 7, end)

	start, _ = locate(lowered, "aspirin", end)
	assert.Equal(t, 13, start)

	start, end = locate(lowered, "ibuprofen", 0)
	assert.Equal(t, -1, start)
	assert.Equal(t, -1, end)
}
