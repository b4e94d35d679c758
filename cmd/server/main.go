package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ade-signal-mcp-server/internal/api"
	"github.com/ade-signal-mcp-server/internal/config"
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
	logger := api.NewLogger(cfg.Logging)
	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).Info("Starting ADE Signal Server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	pipeline, err := api.BuildPipeline(ctx, configManager, logger, m)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize analysis pipeline")
	}
	defer pipeline.Close()

	server := api.NewServer(configManager, pipeline.Analyzer, logger, m)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		pipeline.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
