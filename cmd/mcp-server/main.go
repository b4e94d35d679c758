// Package main serves the analysis tools over MCP using the full configuration:
// reference data from CSV, SQLite or PostgreSQL, model endpoints and the Redis
// prediction cache.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ade-signal-mcp-server/internal/api"
	"github.com/ade-signal-mcp-server/internal/config"
	"github.com/ade-signal-mcp-server/internal/mcp"
	"github.com/ade-signal-mcp-server/internal/metrics"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	// stdout carries the protocol on stdio, so logs always go to stderr.
	loggingCfg := cfg.Logging
	loggingCfg.Output = "stderr"
	logger := api.NewLogger(loggingCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	pipeline, err := api.BuildPipeline(ctx, configManager, logger, m)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize analysis pipeline")
	}
	defer pipeline.Close()

	liteCfg := config.DefaultLiteConfig()
	liteCfg.Transport = cfg.MCP.TransportType
	liteCfg.HTTPPort = cfg.MCP.HTTPPort
	liteCfg.LogLevel = cfg.Logging.Level
	liteCfg.LogFormat = cfg.Logging.Format

	server, err := mcp.NewLiteServer(liteCfg,
		mcp.WithLogger(logger),
		mcp.WithAnalyzer(pipeline.Analyzer),
		mcp.WithMetrics(m),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		server.Close()
		pipeline.Close()
		logger.WithError(err).Fatal("MCP server failed")
	}

	logger.Info("ADE Signal MCP Server stopped")
}
