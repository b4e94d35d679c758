// Package mcp provides the MCP server implementation.
// This file contains the lightweight server that requires no external databases.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/cache"
	litecfg "github.com/ade-signal-mcp-server/internal/config"
	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
	"github.com/ade-signal-mcp-server/internal/middleware"
	"github.com/ade-signal-mcp-server/internal/reference"
	"github.com/ade-signal-mcp-server/internal/service"
	"github.com/ade-signal-mcp-server/pkg/external"
)

// Server metadata reported during the MCP handshake.
const (
	ServerName    = "ade-signal-mcp-server-lite"
	ServerVersion = "v0.1.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses an in-memory prediction cache and SQLite for the reference dataset.
type LiteServer struct {
	config     *litecfg.LiteConfig
	mcpServer  *mcp.Server
	analyzer   *service.Analyzer
	store      *reference.SQLiteStore
	cache      *cache.MemoryCache
	metrics    *metrics.Metrics
	logger     *logrus.Logger
	httpServer *http.Server
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithAnalyzer uses a prebuilt analyzer instead of assembling one from the
// configuration.
func WithAnalyzer(analyzer *service.Analyzer) LiteServerOption {
	return func(s *LiteServer) error {
		if analyzer == nil {
			return errors.New("analyzer must not be nil")
		}
		s.analyzer = analyzer
		return nil
	}
}

// WithMetrics sets a custom metrics registry.
func WithMetrics(m *metrics.Metrics) LiteServerOption {
	return func(s *LiteServer) error {
		s.metrics = m
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	server := &LiteServer{
		config: cfg,
		logger: logrus.New(),
	}

	// Configure default logger
	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	server.logger.SetLevel(level)

	// Apply options
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if server.metrics == nil {
		server.metrics = metrics.New()
	}

	if server.analyzer == nil {
		if err := server.buildAnalyzer(context.Background()); err != nil {
			server.Close()
			return nil, err
		}
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)
	server.registerTools()

	server.logger.Info("Lite server initialized successfully")
	return server, nil
}

// buildAnalyzer assembles the pipeline from the lite configuration: the
// SQLite reference store (optionally seeded from CSV), the lexicons, the
// entity source, the classifier and the memory prediction cache.
func (s *LiteServer) buildAnalyzer(ctx context.Context) error {
	cfg := s.config

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := reference.NewSQLiteStore(cfg.ReferenceDBPath())
	if err != nil {
		return fmt.Errorf("failed to open reference store: %w", err)
	}
	s.store = store

	if cfg.ReferenceCSV != "" {
		imported, err := reference.ImportCSV(ctx, store, cfg.ReferenceCSV)
		if err != nil {
			return fmt.Errorf("failed to import reference CSV: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"path":  cfg.ReferenceCSV,
			"drugs": imported,
		}).Info("Imported reference CSV")
	}

	table, err := reference.LoadTable(ctx, store, s.logger)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}

	lexicons, err := service.LoadLexicons(cfg.LexiconFile)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}

	pipeline := cfg.PipelineConfig()
	matcher, err := service.NewReferenceMatcher(table, pipeline.DrugMatchThreshold, pipeline.SymptomMatchThreshold)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}

	var source domain.EntitySource
	if cfg.NERURL != "" {
		source, err = external.NewNERClient(domain.ModelEndpointConfig{
			BaseURL: cfg.NERURL,
			Timeout: cfg.ModelTimeout,
		}, s.logger, s.metrics)
		if err != nil {
			return err
		}
	} else {
		source = service.NewDictionaryEntitySource(lexicons)
	}

	var classifier domain.SeverityClassifier
	if cfg.ClassifierURL != "" {
		classifier, err = external.NewSeverityClient(domain.ModelEndpointConfig{
			BaseURL: cfg.ClassifierURL,
			Timeout: cfg.ModelTimeout,
		}, s.logger, s.metrics)
	} else {
		classifier, err = service.NewReferenceSeverityClassifier(matcher)
	}
	if err != nil {
		return err
	}

	s.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	predictionCache, err := cache.NewTieredCache(s.cache, nil, s.logger, s.metrics)
	if err != nil {
		return err
	}

	analyzer, err := service.NewAnalyzer(s.logger, service.AnalyzerDeps{
		EntitySource: source,
		Classifier:   classifier,
		Reference:    table,
		Lexicons:     lexicons,
		Cache:        predictionCache,
		Metrics:      s.metrics,
	}, pipeline)
	if err != nil {
		return err
	}
	s.analyzer = analyzer

	s.logger.WithFields(logrus.Fields{
		"entity_source": pipeline.EntitySource,
		"classifier":    classifierKind(cfg),
	}).Info("Pipeline assembled")
	return nil
}

func classifierKind(cfg *litecfg.LiteConfig) string {
	if cfg.ClassifierURL != "" {
		return "http"
	}
	return "reference"
}

// Start starts the lite MCP server on the configured transport and blocks
// until ctx is cancelled or the transport fails.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.WithField("transport_type", s.config.Transport).Info("Starting ADE Signal MCP Server (Lite)...")

	switch s.config.Transport {
	case "http":
		return s.serveHTTP(ctx)
	default:
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	}
}

// serveHTTP exposes the MCP streamable HTTP endpoint at /mcp next to health
// and metrics endpoints.
func (s *LiteServer) serveHTTP(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.httpHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("MCP HTTP transport listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP HTTP transport failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *LiteServer) httpHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Metrics(s.metrics))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"server":          ServerName,
			"version":         ServerVersion,
			"reference_drugs": s.analyzer.Matcher().Table().Len(),
		})
	})
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
	router.Any("/mcp", gin.WrapH(mcpHandler))

	return router
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close reference store")
		}
		s.store = nil
	}
	return nil
}

// Analyzer returns the pipeline the tools run against.
func (s *LiteServer) Analyzer() *service.Analyzer {
	return s.analyzer
}

// MCPServer returns the underlying SDK server, mainly for in-process sessions.
func (s *LiteServer) MCPServer() *mcp.Server {
	return s.mcpServer
}

// GetCache returns the memory cache for external access. It is nil when the
// analyzer was supplied through WithAnalyzer.
func (s *LiteServer) GetCache() *cache.MemoryCache {
	return s.cache
}
