package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/reference"
	"github.com/ade-signal-mcp-server/internal/service"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// Tool limits.
const (
	maxTranscriptLength = 100000
	defaultMatchLimit   = 5
	maxMatchLimit       = 50
)

// AnalyzeConversationParams defines parameters for the analyze_conversation tool
type AnalyzeConversationParams struct {
	Text   string `json:"text" jsonschema:"conversation transcript to analyze"`
	Format string `json:"format,omitempty" jsonschema:"response text format: json (default) or text"`
}

// AnalyzeConversationResult defines the result structure for analyze_conversation
type AnalyzeConversationResult struct {
	Result         *domain.AnalysisResult `json:"result"`
	Report         string                 `json:"report"`
	ProcessingTime string                 `json:"processing_time"`
}

// MatchReferenceParams defines parameters for the match_reference tool
type MatchReferenceParams struct {
	Medicine string   `json:"medicine" jsonschema:"medicine name, possibly misspelled"`
	Symptoms []string `json:"symptoms,omitempty" jsonschema:"symptoms to match against the drug's reaction terms"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of drug suggestions"`
}

// MatchReferenceResult defines the result structure for match_reference
type MatchReferenceResult struct {
	Medicine    string                        `json:"medicine"`
	Matched     bool                          `json:"matched"`
	Candidate   *domain.AdverseEventCandidate `json:"candidate,omitempty"`
	Suggestions []service.DrugSuggestion      `json:"suggestions"`
}

// ReferenceStatsParams defines parameters for the reference_stats tool
type ReferenceStatsParams struct{}

// registerTools registers the ADE tools with the MCP SDK.
func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "analyze_conversation",
		Description: "Extract medicines and symptoms from a patient conversation and flag candidate adverse drug events with reference and predicted severity",
	}, s.handleAnalyzeConversation)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "match_reference",
		Description: "Fuzzy-match a medicine against the reference reaction database, optionally pairing symptoms with known reactions",
	}, s.handleMatchReference)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reference_stats",
		Description: "Report the size and severity mix of the loaded reference reaction database",
	}, s.handleReferenceStats)

	s.logger.WithField("tool_count", 3).Info("Successfully registered all tools")
}

// handleAnalyzeConversation handles the analyze_conversation tool invocation
func (s *LiteServer) handleAnalyzeConversation(ctx context.Context, req *mcp.CallToolRequest, params AnalyzeConversationParams) (*mcp.CallToolResult, AnalyzeConversationResult, error) {
	s.logger.WithField("tool", "analyze_conversation").Info("Tool invoked")

	result, err := s.analyzeConversation(ctx, params)
	if err != nil {
		return nil, AnalyzeConversationResult{}, err
	}

	var text string
	if params.Format == "text" {
		text = result.Report
	} else {
		text = fmt.Sprintf("Analysis completed: %d medicines, %d symptoms, %d adverse event candidates",
			result.Result.Summary.MedicineCount,
			result.Result.Summary.SymptomCount,
			result.Result.Summary.AdverseEventCount)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, result, nil
}

func (s *LiteServer) analyzeConversation(ctx context.Context, params AnalyzeConversationParams) (AnalyzeConversationResult, error) {
	if strings.TrimSpace(params.Text) == "" {
		return AnalyzeConversationResult{}, errors.New("text is required")
	}
	if len(params.Text) > maxTranscriptLength {
		return AnalyzeConversationResult{}, fmt.Errorf("text exceeds %d characters", maxTranscriptLength)
	}
	if params.Format != "" && params.Format != "json" && params.Format != "text" {
		return AnalyzeConversationResult{}, fmt.Errorf("unsupported format %q", params.Format)
	}

	start := time.Now()
	result, err := s.analyzer.Analyze(ctx, params.Text)
	if err != nil {
		return AnalyzeConversationResult{}, fmt.Errorf("analysis failed: %w", err)
	}

	return AnalyzeConversationResult{
		Result:         result,
		Report:         service.FormatReport(result),
		ProcessingTime: time.Since(start).String(),
	}, nil
}

// handleMatchReference handles the match_reference tool invocation
func (s *LiteServer) handleMatchReference(ctx context.Context, req *mcp.CallToolRequest, params MatchReferenceParams) (*mcp.CallToolResult, MatchReferenceResult, error) {
	s.logger.WithField("tool", "match_reference").Info("Tool invoked")

	result, err := s.matchReference(params)
	if err != nil {
		return nil, MatchReferenceResult{}, err
	}

	text := fmt.Sprintf("No reference drug matched %q", params.Medicine)
	if result.Matched {
		text = fmt.Sprintf("%q matched reference drug %q", params.Medicine, result.Suggestions[0].DrugName)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, result, nil
}

func (s *LiteServer) matchReference(params MatchReferenceParams) (MatchReferenceResult, error) {
	medicine := textnorm.Canonical(params.Medicine)
	if medicine == "" {
		return MatchReferenceResult{}, errors.New("medicine is required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultMatchLimit
	}
	if limit > maxMatchLimit {
		limit = maxMatchLimit
	}

	matcher := s.analyzer.Matcher()
	result := MatchReferenceResult{
		Medicine:    medicine,
		Suggestions: matcher.Lookup(medicine, limit),
	}
	_, result.Matched = matcher.MatchDrug(medicine)

	if result.Matched && len(params.Symptoms) > 0 {
		candidates := matcher.Match([]string{medicine}, service.Merge(params.Symptoms))
		if len(candidates) == 1 {
			result.Candidate = &candidates[0]
		}
	}
	return result, nil
}

// handleReferenceStats handles the reference_stats tool invocation
func (s *LiteServer) handleReferenceStats(ctx context.Context, req *mcp.CallToolRequest, params ReferenceStatsParams) (*mcp.CallToolResult, reference.Stats, error) {
	stats := s.analyzer.Matcher().Table().Stats()
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Reference database: %d drugs, %d reaction terms", stats.Drugs, stats.ReactionTerms),
		}},
	}, stats, nil
}
