// Package main provides the lightweight entry point for the ADE Signal MCP Server.
// This version requires no external databases - uses in-memory caching and SQLite.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ade-signal-mcp-server/internal/config"
	"github.com/ade-signal-mcp-server/internal/mcp"
	"github.com/ade-signal-mcp-server/internal/setup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		cancel()
		log.Fatalf("ADE Signal MCP Server (Lite) failed: %v", err)
	}
	cancel()
}

// run dispatches the setup subcommand or serves MCP until ctx is cancelled.
func run(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "setup" {
		if err := setup.NewCLI().Run(ctx, args[1:]); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
		return nil
	}

	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	log.Printf("Starting ADE Signal MCP Server (Lite) with transport: %s", cfg.Transport)
	log.Printf("Data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		return err
	}

	log.Println("ADE Signal MCP Server (Lite) stopped")
	return nil
}
