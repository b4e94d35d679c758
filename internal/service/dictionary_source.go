package service

import (
	"context"
	"fmt"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// DictionaryEntitySource is an EntitySource backed by the static lexicons.
// It is used when no entity model endpoint is configured. Text is run through
// textnorm.Preprocess first, so span offsets refer to the preprocessed text.
// Every span it returns has a score of 1.0.
type DictionaryEntitySource struct {
	lexicons *Lexicons
}

// NewDictionaryEntitySource creates a dictionary source. nil selects the
// built-in lexicons.
func NewDictionaryEntitySource(lexicons *Lexicons) *DictionaryEntitySource {
	if lexicons == nil {
		lexicons = DefaultLexicons()
	}
	return &DictionaryEntitySource{lexicons: lexicons}
}

// Extract implements domain.EntitySource.
func (d *DictionaryEntitySource) Extract(ctx context.Context, text string, entityType domain.EntityType) ([]domain.EntitySpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lexicon *Lexicon
	switch entityType {
	case domain.DRUG:
		lexicon = d.lexicons.Drugs
	case domain.SYMPTOM:
		lexicon = d.lexicons.Symptoms
	case domain.DISEASE:
		lexicon = d.lexicons.Diseases
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}
	if lexicon == nil {
		return []domain.EntitySpan{}, nil
	}

	spans := lexicon.Find(textnorm.Preprocess(text), entityType)
	if spans == nil {
		spans = []domain.EntitySpan{}
	}
	return spans, nil
}

// ExtractAll implements domain.EntitySource.
func (d *DictionaryEntitySource) ExtractAll(ctx context.Context, text string) (map[domain.EntityType][]domain.EntitySpan, error) {
	out := make(map[domain.EntityType][]domain.EntitySpan, len(domain.AllEntityTypes))
	for _, entityType := range domain.AllEntityTypes {
		spans, err := d.Extract(ctx, text, entityType)
		if err != nil {
			return nil, err
		}
		out[entityType] = spans
	}
	return out, nil
}
