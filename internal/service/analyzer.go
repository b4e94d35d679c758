package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
	"github.com/ade-signal-mcp-server/internal/reference"
)

// AnalyzerDeps are the collaborators an Analyzer is built from.
type AnalyzerDeps struct {
	EntitySource domain.EntitySource
	Classifier   domain.SeverityClassifier
	Reference    *reference.Table
	Lexicons     *Lexicons              // optional, defaults to the built-in lists
	Cache        domain.PredictionCache // optional
	Metrics      *metrics.Metrics       // optional
}

// Analyzer runs the extraction-to-signal pipeline over conversation
// transcripts. It is immutable after construction and safe for concurrent use.
type Analyzer struct {
	logger              *logrus.Logger
	entitySource        domain.EntitySource
	lexicons            *Lexicons
	matcher             *ReferenceMatcher
	scorer              *SeverityScorer
	metrics             *metrics.Metrics
	confidenceThreshold float64
	batchConcurrency    int
}

// NewAnalyzer wires the pipeline. Missing required collaborators, an empty
// reference table or an out-of-range threshold are initialization failures.
// Zero thresholds select the defaults, except a confidence threshold marked
// ConfidenceThresholdSet.
func NewAnalyzer(logger *logrus.Logger, deps AnalyzerDeps, cfg domain.PipelineConfig) (*Analyzer, error) {
	if deps.EntitySource == nil {
		return nil, fmt.Errorf("entity source is required: %w", domain.ErrInitialization)
	}
	if deps.Reference == nil || deps.Reference.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, domain.ErrEmptyReference)
	}

	if cfg.ConfidenceThreshold == 0 && !cfg.ConfidenceThresholdSet {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.DrugMatchThreshold == 0 {
		cfg.DrugMatchThreshold = DefaultDrugMatchThreshold
	}
	if cfg.SymptomMatchThreshold == 0 {
		cfg.SymptomMatchThreshold = DefaultSymptomMatchThreshold
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("%w: confidence threshold %v: %w", domain.ErrInitialization, cfg.ConfidenceThreshold, domain.ErrInvalidThreshold)
	}

	matcher, err := NewReferenceMatcher(deps.Reference, cfg.DrugMatchThreshold, cfg.SymptomMatchThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}

	scorer, err := NewSeverityScorer(deps.Classifier, deps.Cache, logger)
	if err != nil {
		return nil, err
	}

	lexicons := deps.Lexicons
	if lexicons == nil {
		lexicons = DefaultLexicons()
	}

	logger.WithFields(logrus.Fields{
		"reference_drugs":         deps.Reference.Len(),
		"drug_lexicon_terms":      lexicons.Drugs.Len(),
		"symptom_lexicon_terms":   lexicons.Symptoms.Len(),
		"confidence_threshold":    cfg.ConfidenceThreshold,
		"drug_match_threshold":    cfg.DrugMatchThreshold,
		"symptom_match_threshold": cfg.SymptomMatchThreshold,
	}).Info("Analyzer initialized")

	return &Analyzer{
		logger:              logger,
		entitySource:        deps.EntitySource,
		lexicons:            lexicons,
		matcher:             matcher,
		scorer:              scorer,
		metrics:             deps.Metrics,
		confidenceThreshold: cfg.ConfidenceThreshold,
		batchConcurrency:    cfg.BatchConcurrency,
	}, nil
}

// Analyze runs every pipeline stage over one transcript. Entity source and
// classifier failures degrade the result instead of failing it; only context
// cancellation returns an error.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	startTime := time.Now()

	result := &domain.AnalysisResult{
		ExtractedMedicines: []string{},
		ExtractedSymptoms:  []string{},
		AdverseEvents:      []domain.AdverseEventCandidate{},
	}
	if strings.TrimSpace(text) == "" {
		result.Summary = domain.NewSummary(nil, nil, nil)
		return result, nil
	}

	// Step 1: entity extraction per type
	spans, failures := a.extractEntities(ctx, text)
	result.Degraded = append(result.Degraded, failures...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 2: confidence filter, lexicon augmentation and deduplication
	drugs := FilterByConfidence(spans[domain.DRUG], a.confidenceThreshold)
	conditions := append(
		FilterByConfidence(spans[domain.SYMPTOM], a.confidenceThreshold),
		FilterByConfidence(spans[domain.DISEASE], a.confidenceThreshold)...,
	)
	result.ExtractedMedicines = Merge(a.lexicons.Drugs.Augment(text, Merge(drugs)))
	result.ExtractedSymptoms = Merge(a.lexicons.Symptoms.Augment(text, Merge(conditions)))

	// Step 3: reference matching
	result.AdverseEvents = a.matcher.Match(result.ExtractedMedicines, result.ExtractedSymptoms)

	// Step 4: severity prediction per matched symptom
	result.Degraded = append(result.Degraded, a.scoreCandidates(ctx, result.AdverseEvents)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 5: summary
	result.Summary = domain.NewSummary(result.ExtractedMedicines, result.ExtractedSymptoms, result.AdverseEvents)

	elapsed := time.Since(startTime)
	a.metrics.ObserveAnalysis(result, elapsed)

	entry := a.logger.WithFields(logrus.Fields{
		"medicine_count":      result.Summary.MedicineCount,
		"symptom_count":       result.Summary.SymptomCount,
		"adverse_event_count": result.Summary.AdverseEventCount,
		"degraded_components": len(result.Degraded),
		"processing_time":     elapsed,
	})
	if result.IsDegraded() {
		entry.Warn("Conversation analysis completed with degraded components")
	} else {
		entry.Info("Conversation analysis completed")
	}

	return result, nil
}

// extractEntities queries the entity source for every entity type
// concurrently. Each goroutine writes only its own slot.
func (a *Analyzer) extractEntities(ctx context.Context, text string) (map[domain.EntityType][]domain.EntitySpan, []domain.ComponentFailure) {
	types := domain.AllEntityTypes
	spans := make([][]domain.EntitySpan, len(types))
	errs := make([]error, len(types))

	var wg sync.WaitGroup
	for i, entityType := range types {
		wg.Add(1)
		go func(i int, entityType domain.EntityType) {
			defer wg.Done()
			spans[i], errs[i] = a.extractType(ctx, text, entityType)
		}(i, entityType)
	}
	wg.Wait()

	byType := make(map[domain.EntityType][]domain.EntitySpan, len(types))
	var failures []domain.ComponentFailure
	for i, entityType := range types {
		if errs[i] != nil {
			a.logger.WithError(errs[i]).WithField("entity_type", entityType).Warn("Entity extraction failed, proceeding with available entities")
			failures = append(failures, domain.ComponentFailure{
				Component:  domain.ComponentEntitySource,
				EntityType: entityType,
				Error:      errs[i].Error(),
			})
			byType[entityType] = nil
			continue
		}
		byType[entityType] = spans[i]
	}
	return byType, failures
}

// extractType calls the entity source for one type, converting a panic into an error.
func (a *Analyzer) extractType(ctx context.Context, text string, entityType domain.EntityType) (spans []domain.EntitySpan, err error) {
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = fmt.Errorf("entity source panicked: %v", r)
		}
	}()
	return a.entitySource.Extract(ctx, text, entityType)
}

// scoreCandidates fills in predicted severities in place.
func (a *Analyzer) scoreCandidates(ctx context.Context, candidates []domain.AdverseEventCandidate) []domain.ComponentFailure {
	var failures []domain.ComponentFailure
	for i := range candidates {
		candidate := &candidates[i]
		for j := range candidate.MatchedSymptoms {
			matched := &candidate.MatchedSymptoms[j]

			prediction, err := a.scorer.Score(ctx, candidate.Medicine, matched.Symptom)
			if err != nil {
				a.logger.WithError(err).WithFields(logrus.Fields{
					"medicine": candidate.Medicine,
					"symptom":  matched.Symptom,
				}).Warn("Severity prediction failed, reporting Unknown")
				failures = append(failures, domain.ComponentFailure{
					Component: domain.ComponentSeverityScorer,
					Medicine:  candidate.Medicine,
					Symptom:   matched.Symptom,
					Error:     err.Error(),
				})
			}

			matched.PredictedSeverity = prediction.Severity
			matched.PredictionConfidence = prediction.Confidence
			matched.SeverityDisagrees = prediction.Severity != domain.SeverityUnknown &&
				candidate.Severity != domain.SeverityUnknown &&
				prediction.Severity != candidate.Severity
		}
	}
	return failures
}

// BatchResult pairs one transcript's result with its error.
type BatchResult struct {
	Index  int                    `json:"index"`
	Result *domain.AnalysisResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// AnalyzeBatch analyzes several transcripts concurrently with bounded
// parallelism. Results are returned in input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string) []BatchResult {
	results := make([]BatchResult, len(texts))
	semaphore := make(chan struct{}, a.batchConcurrency)
	var wg sync.WaitGroup

	a.logger.WithField("batch_size", len(texts)).Info("Starting batch analysis")

	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			results[i].Index = i

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[i].Error = ctx.Err().Error()
				return
			}

			result, err := a.Analyze(ctx, text)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Result = result
		}(i, text)
	}
	wg.Wait()

	return results
}

// Matcher exposes the reference matcher for drug lookups.
func (a *Analyzer) Matcher() *ReferenceMatcher {
	return a.matcher
}
