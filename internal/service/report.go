package service

import (
	"fmt"
	"strings"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// FormatReport renders an analysis result as a plain-text report.
func FormatReport(result *domain.AnalysisResult) string {
	var b strings.Builder
	if result == nil {
		return "No analysis result\n"
	}

	b.WriteString("Analysis Results:\n")
	fmt.Fprintf(&b, "Extracted Medicines: %s\n", formatList(result.ExtractedMedicines))
	fmt.Fprintf(&b, "Extracted Symptoms: %s\n", formatList(result.ExtractedSymptoms))

	b.WriteString("\nDetected Adverse Events:\n")
	if len(result.AdverseEvents) == 0 {
		b.WriteString("None\n")
	}
	for i, event := range result.AdverseEvents {
		fmt.Fprintf(&b, "\nAdverse Event #%d:\n", i+1)
		fmt.Fprintf(&b, "Medicine: %s (matched to %s, %s confidence)\n",
			event.Medicine, event.MatchedDrug, domain.ConfidenceBand(event.DrugMatchConfidence))
		fmt.Fprintf(&b, "Reference Severity: %s\n", event.Severity)
		b.WriteString("Matched Symptoms:\n")
		for _, match := range event.MatchedSymptoms {
			fmt.Fprintf(&b, "  - %s (matched to %s)\n", match.Symptom, match.MatchedReaction)
			fmt.Fprintf(&b, "    Predicted Severity: %s (confidence: %.2f)\n",
				match.PredictedSeverity, match.PredictionConfidence)
			if match.SeverityDisagrees {
				b.WriteString("    Note: prediction differs from reference severity\n")
			}
		}
	}

	b.WriteString("\nSeverity Distribution:\n")
	for _, severity := range domain.AllSeverities {
		if count := result.Summary.SeverityDistribution[severity]; count > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", severity, count)
		}
	}

	if result.IsDegraded() {
		b.WriteString("\nDegraded Components:\n")
		for _, failure := range result.Degraded {
			switch {
			case failure.EntityType != "":
				fmt.Fprintf(&b, "  - %s (%s): %s\n", failure.Component, failure.EntityType, failure.Error)
			case failure.Medicine != "":
				fmt.Fprintf(&b, "  - %s (%s / %s): %s\n", failure.Component, failure.Medicine, failure.Symptom, failure.Error)
			default:
				fmt.Fprintf(&b, "  - %s: %s\n", failure.Component, failure.Error)
			}
		}
	}

	return b.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
