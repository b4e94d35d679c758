// Package domain contains the core entities for adverse drug event (ADE) signal
// detection: extracted entity spans, reference reaction records, matched
// adverse event candidates and the aggregated analysis result.
//
// Severity classes follow the FDA serious adverse event outcome grouping used by
// FAERS-style reporting databases.
package domain

import "strings"

// EntityType is the category an entity source assigns to a text span.
type EntityType string

const (
	DRUG    EntityType = "DRUG"
	SYMPTOM EntityType = "SYMPTOM"
	DISEASE EntityType = "DISEASE"
)

// AllEntityTypes lists the entity types requested from an entity source in
// pipeline order.
var AllEntityTypes = []EntityType{DRUG, SYMPTOM, DISEASE}

// IsValid reports whether t is one of the known entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case DRUG, SYMPTOM, DISEASE:
		return true
	default:
		return false
	}
}

// String returns the string representation of the entity type
func (t EntityType) String() string {
	return string(t)
}

// Severity is the seriousness class of an adverse event.
type Severity string

const (
	SeverityCritical       Severity = "Critical"
	SeverityNearCritical   Severity = "Near-Critical"
	SeverityNeedsAttention Severity = "Needs Attention"
	SeverityUnknown        Severity = "Unknown"
)

// AllSeverities lists severities from most to least serious.
var AllSeverities = []Severity{
	SeverityCritical,
	SeverityNearCritical,
	SeverityNeedsAttention,
	SeverityUnknown,
}

// ParseSeverity maps a loosely formatted label or a FAERS outcome code
// (outc_cod) onto a Severity. Unknown labels map to SeverityUnknown.
func ParseSeverity(label string) Severity {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	switch normalized {
	case "critical",
		"de", "lt", "ho": // death, life-threatening, hospitalization
		return SeverityCritical
	case "near critical",
		"ds", "ca", "ri": // disability, congenital anomaly, required intervention
		return SeverityNearCritical
	case "needs attention",
		"ot": // other serious
		return SeverityNeedsAttention
	default:
		return SeverityUnknown
	}
}

// IsValid reports whether s is one of the four severity classes.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityNearCritical, SeverityNeedsAttention, SeverityUnknown:
		return true
	default:
		return false
	}
}

// Rank returns the ordinal encoding of the severity, 0 being the most serious.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityNearCritical:
		return 1
	case SeverityNeedsAttention:
		return 2
	default:
		return 3
	}
}

// Description returns the outcome group a severity class stands for.
func (s Severity) Description() string {
	switch s {
	case SeverityCritical:
		return "Death, life-threatening event, or hospitalization"
	case SeverityNearCritical:
		return "Disability, congenital anomaly, or required intervention"
	case SeverityNeedsAttention:
		return "Other serious or important medical event"
	default:
		return "Severity could not be determined"
	}
}

// String returns the string representation of the severity
func (s Severity) String() string {
	return string(s)
}

// EntitySpan is a single entity mention reported by an entity source.
type EntitySpan struct {
	Text  string     `json:"text"`
	Type  EntityType `json:"type"`
	Score float64    `json:"score"`
	Start int        `json:"start,omitempty"`
	End   int        `json:"end,omitempty"`
}

// ReferenceRecord is one drug entry of the reference reaction database.
type ReferenceRecord struct {
	DrugName      string   `json:"drug_name"`
	ReactionTerms []string `json:"reaction_terms"`
	Severity      Severity `json:"severity"`
}

// MatchedSymptom links an extracted symptom to a reference reaction term.
type MatchedSymptom struct {
	Symptom              string   `json:"symptom"`
	MatchedReaction      string   `json:"matched_reaction"`
	MatchScore           float64  `json:"match_score"`
	PredictedSeverity    Severity `json:"predicted_severity"`
	PredictionConfidence float64  `json:"prediction_confidence"`
	// SeverityDisagrees is set when the prediction is known and differs from
	// the reference severity of the matched drug.
	SeverityDisagrees bool `json:"severity_disagrees"`
}

// AdverseEventCandidate is a medicine with at least one matched reaction.
type AdverseEventCandidate struct {
	Medicine            string           `json:"medicine"`
	MatchedDrug         string           `json:"matched_drug"`
	DrugMatchConfidence float64          `json:"drug_match_confidence"`
	Severity            Severity         `json:"severity"`
	MatchedSymptoms     []MatchedSymptom `json:"matched_symptoms"`
}

// Summary holds counts computed from the final result sequences.
type Summary struct {
	MedicineCount        int              `json:"medicine_count"`
	SymptomCount         int              `json:"symptom_count"`
	AdverseEventCount    int              `json:"adverse_event_count"`
	MatchedSymptomCount  int              `json:"matched_symptom_count"`
	SeverityDistribution map[Severity]int `json:"severity_distribution"`
}

// ComponentFailure records a non-fatal failure inside one pipeline stage.
type ComponentFailure struct {
	Component  string     `json:"component"`
	EntityType EntityType `json:"entity_type,omitempty"`
	Medicine   string     `json:"medicine,omitempty"`
	Symptom    string     `json:"symptom,omitempty"`
	Error      string     `json:"error"`
}

// Component names used in ComponentFailure records.
const (
	ComponentEntitySource   = "entity_source"
	ComponentSeverityScorer = "severity_scorer"
)

// AnalysisResult is the structured output of one conversation analysis.
type AnalysisResult struct {
	ExtractedMedicines []string                `json:"extracted_medicines"`
	ExtractedSymptoms  []string                `json:"extracted_symptoms"`
	AdverseEvents      []AdverseEventCandidate `json:"adverse_events"`
	Summary            Summary                 `json:"summary"`
	Degraded           []ComponentFailure      `json:"degraded,omitempty"`
}

// IsDegraded reports whether any pipeline stage failed while producing the result.
func (r *AnalysisResult) IsDegraded() bool {
	return len(r.Degraded) > 0
}

// NewSummary computes summary counts from the final result sequences.
func NewSummary(medicines, symptoms []string, events []AdverseEventCandidate) Summary {
	summary := Summary{
		MedicineCount:        len(medicines),
		SymptomCount:         len(symptoms),
		AdverseEventCount:    len(events),
		SeverityDistribution: make(map[Severity]int),
	}
	for _, event := range events {
		summary.MatchedSymptomCount += len(event.MatchedSymptoms)
		summary.SeverityDistribution[event.Severity]++
	}
	return summary
}

// ConfidenceBand buckets a prediction confidence into high, medium or low.
func ConfidenceBand(confidence float64) string {
	switch {
	case confidence >= 0.7:
		return "high"
	case confidence >= 0.4:
		return "medium"
	default:
		return "low"
	}
}
