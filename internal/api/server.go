package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
	"github.com/ade-signal-mcp-server/internal/middleware"
	"github.com/ade-signal-mcp-server/internal/service"
	"github.com/ade-signal-mcp-server/pkg/textnorm"
)

// Request limits.
const (
	MaxTextLength      = 100000
	MaxBatchSize       = 50
	DefaultLookupLimit = 10
	MaxLookupLimit     = 100
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	analyzer      *service.Analyzer
	logger        *logrus.Logger
	metrics       *metrics.Metrics
	router        *gin.Engine
	server        *http.Server
	startedAt     time.Time
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Text                  string `json:"text"`
	Format                string `json:"format,omitempty"` // "json" (default) or "text"
	IncludeNormalizedText bool   `json:"include_normalized_text,omitempty"`
}

// AnalyzeResponse wraps an analysis result.
type AnalyzeResponse struct {
	Result         *domain.AnalysisResult `json:"result"`
	Report         string                 `json:"report,omitempty"`
	NormalizedText string                 `json:"normalized_text,omitempty"`
	ProcessingTime string                 `json:"processing_time"`
	RequestID      string                 `json:"request_id"`
}

// BatchAnalyzeRequest is the body of POST /api/v1/analyze/batch.
type BatchAnalyzeRequest struct {
	Texts []string `json:"texts"`
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, analyzer *service.Analyzer, logger *logrus.Logger, m *metrics.Metrics) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(m))

	server := &Server{
		configManager: configManager,
		analyzer:      analyzer,
		logger:        logger,
		metrics:       m,
		router:        router,
		startedAt:     time.Now(),
	}

	server.setupRoutes(cfg.Server)
	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(cfg domain.ServerConfig) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RateLimit(newLimiter(cfg)))
	v1.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
	v1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/analyze/batch", s.handleAnalyzeBatch)
		v1.GET("/reference/drugs", s.handleLookupDrugs)
		v1.GET("/reference/stats", s.handleReferenceStats)
	}
}

func newLimiter(cfg domain.ServerConfig) *middleware.ClientRateLimiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	return middleware.NewClientRateLimiter(cfg.RateLimit, cfg.RateBurst)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       time.Now().UTC(),
		"version":         Version,
		"uptime":          time.Since(s.startedAt).Round(time.Second).String(),
		"reference_drugs": s.analyzer.Matcher().Table().Len(),
	})
}

// handleAnalyze runs the pipeline over one transcript.
func (s *Server) handleAnalyze(c *gin.Context) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}
	if verr := validateText("text", req.Text); verr != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, verr.Message, verr.Error())
		return
	}
	if req.Format != "" && req.Format != "json" && req.Format != "text" {
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, "format must be json or text", req.Format)
		return
	}

	start := time.Now()
	result, err := s.analyzer.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		s.handleAnalysisError(c, err)
		return
	}

	resp := AnalyzeResponse{
		Result:         result,
		ProcessingTime: time.Since(start).String(),
		RequestID:      requestID,
	}
	if req.Format == "text" {
		resp.Report = service.FormatReport(result)
	}
	if req.IncludeNormalizedText {
		resp.NormalizedText = textnorm.Preprocess(req.Text)
	}
	c.JSON(http.StatusOK, resp)
}

// handleAnalyzeBatch analyzes several transcripts concurrently.
func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	var req BatchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}
	if len(req.Texts) == 0 || len(req.Texts) > MaxBatchSize {
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation,
			fmt.Sprintf("texts must contain between 1 and %d items", MaxBatchSize), strconv.Itoa(len(req.Texts)))
		return
	}
	for i, text := range req.Texts {
		if len(text) > MaxTextLength {
			s.respondError(c, http.StatusBadRequest, domain.ErrValidation,
				fmt.Sprintf("texts[%d] exceeds %d characters", i, MaxTextLength), "")
			return
		}
	}

	results := s.analyzer.AnalyzeBatch(c.Request.Context(), req.Texts)
	if err := c.Request.Context().Err(); err != nil {
		s.handleAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    results,
		"count":      len(results),
		"request_id": c.GetString(middleware.CorrelationIDKey),
	})
}

// handleLookupDrugs ranks reference drugs by similarity to ?q=.
func (s *Server) handleLookupDrugs(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, "query parameter q is required", "")
		return
	}

	limit := DefaultLookupLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > MaxLookupLimit {
			s.respondError(c, http.StatusBadRequest, domain.ErrValidation,
				fmt.Sprintf("limit must be an integer between 1 and %d", MaxLookupLimit), raw)
			return
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"query":       query,
		"suggestions": s.analyzer.Matcher().Lookup(query, limit),
	})
}

// handleReferenceStats reports the size of the loaded reference table.
func (s *Server) handleReferenceStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.analyzer.Matcher().Table().Stats())
}

func (s *Server) handleAnalysisError(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		middleware.TimeoutResponse(c)
		return
	}
	s.logger.WithError(err).WithField("request_id", c.GetString(middleware.CorrelationIDKey)).Error("Conversation analysis failed")
	code, status := domain.Classify(err)
	s.respondError(c, status, code, "Analysis failed", err.Error())
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewServiceError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

func validateText(field, text string) *domain.ValidationError {
	if strings.TrimSpace(text) == "" {
		return domain.NewValidationError(field, "text is required", text)
	}
	if len(text) > MaxTextLength {
		return domain.NewValidationError(field, fmt.Sprintf("text exceeds %d characters", MaxTextLength), len(text))
	}
	return nil
}
