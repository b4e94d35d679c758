package service

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// DefaultSymptomTerms are symptom keywords conversational transcripts use that
// entity models routinely miss.
var DefaultSymptomTerms = []string{
	"pain", "ache", "discomfort", "nausea", "vomiting", "dizziness",
	"headache", "fever", "cough", "rash", "swelling", "fatigue",
	"tired", "exhaustion", "weakness", "numbness", "tingling", "itching",
	"burning", "cramping", "stiffness", "sore", "difficulty", "problem",
	"issue", "trouble", "distress", "feeling", "sensation",
}

// DefaultDrugTerms are commonly discussed medicines used when no lexicon file is configured.
var DefaultDrugTerms = []string{
	"acetaminophen", "amlodipine", "amoxicillin", "aspirin", "atorvastatin",
	"ibuprofen", "lisinopril", "losartan", "metformin", "metoprolol",
	"naproxen", "omeprazole", "prednisone", "simvastatin", "tylenol", "warfarin",
}

// DefaultDiseaseTerms back the DISEASE type of the dictionary entity source.
var DefaultDiseaseTerms = []string{
	"asthma", "diabetes", "hypertension", "hypotension", "insomnia",
	"migraine", "pneumonia", "arrhythmia", "anemia", "hepatitis",
}

// Lexicon is an immutable list of terms with precompiled whole-word matchers.
type Lexicon struct {
	terms    []string
	patterns []*regexp.Regexp
}

// NewLexicon canonicalizes terms and compiles one case-insensitive whole-word
// pattern per distinct term. Regex metacharacters in terms are matched literally.
func NewLexicon(terms []string) (*Lexicon, error) {
	canonical := textnorm.UniqueSorted(terms)
	lex := &Lexicon{
		terms:    canonical,
		patterns: make([]*regexp.Regexp, 0, len(canonical)),
	}
	for _, term := range canonical {
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("failed to compile lexicon term %q: %w", term, err)
		}
		lex.patterns = append(lex.patterns, pattern)
	}
	return lex, nil
}

// MustLexicon is NewLexicon for built-in term lists.
func MustLexicon(terms []string) *Lexicon {
	lex, err := NewLexicon(terms)
	if err != nil {
		panic(err)
	}
	return lex
}

// Terms returns a copy of the canonical terms.
func (l *Lexicon) Terms() []string {
	out := make([]string, len(l.terms))
	copy(out, l.terms)
	return out
}

// Len returns the number of distinct terms.
func (l *Lexicon) Len() int {
	return len(l.terms)
}

// Augment returns existing followed by every lexicon term that occurs as a
// whole word in text and is not already present. Presence is decided on the
// canonical form, so a hit differing only in case from an existing entry is
// not added again.
func (l *Lexicon) Augment(text string, existing []string) []string {
	out := make([]string, len(existing))
	copy(out, existing)
	if l == nil || len(l.terms) == 0 || text == "" {
		return out
	}

	present := make(map[string]struct{}, len(existing))
	for _, term := range existing {
		present[textnorm.Canonical(term)] = struct{}{}
	}

	lowered := strings.ToLower(text)
	for i, pattern := range l.patterns {
		term := l.terms[i]
		if _, ok := present[term]; ok {
			continue
		}
		if pattern.MatchString(lowered) {
			out = append(out, term)
			present[term] = struct{}{}
		}
	}
	return out
}

// Find returns a span for every whole-word occurrence of a lexicon term in
// text. Offsets are byte offsets into the lowercased text.
func (l *Lexicon) Find(text string, entityType domain.EntityType) []domain.EntitySpan {
	lowered := strings.ToLower(text)
	var spans []domain.EntitySpan
	for i, pattern := range l.patterns {
		for _, loc := range pattern.FindAllStringIndex(lowered, -1) {
			spans = append(spans, domain.EntitySpan{
				Text:  l.terms[i],
				Type:  entityType,
				Score: 1.0,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}
	return spans
}

// LexiconFile is the on-disk YAML layout for static term lists.
type LexiconFile struct {
	Drugs    []string `yaml:"drugs"`
	Symptoms []string `yaml:"symptoms"`
	Diseases []string `yaml:"diseases"`
}

// Lexicons bundles the static term lists the pipeline scans with.
type Lexicons struct {
	Drugs    *Lexicon
	Symptoms *Lexicon
	Diseases *Lexicon
}

// DefaultLexicons returns the built-in term lists.
func DefaultLexicons() *Lexicons {
	return &Lexicons{
		Drugs:    MustLexicon(DefaultDrugTerms),
		Symptoms: MustLexicon(DefaultSymptomTerms),
		Diseases: MustLexicon(DefaultDiseaseTerms),
	}
}

// LoadLexicons reads a YAML lexicon file. Lists missing from the file fall
// back to the built-in defaults. An empty path returns the defaults.
func LoadLexicons(path string) (*Lexicons, error) {
	if path == "" {
		return DefaultLexicons(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	var file LexiconFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon file: %w", err)
	}

	build := func(terms, fallback []string) (*Lexicon, error) {
		if len(terms) == 0 {
			terms = fallback
		}
		return NewLexicon(terms)
	}

	drugs, err := build(file.Drugs, DefaultDrugTerms)
	if err != nil {
		return nil, err
	}
	symptoms, err := build(file.Symptoms, DefaultSymptomTerms)
	if err != nil {
		return nil, err
	}
	diseases, err := build(file.Diseases, DefaultDiseaseTerms)
	if err != nil {
		return nil, err
	}

	return &Lexicons{Drugs: drugs, Symptoms: symptoms, Diseases: diseases}, nil
}
