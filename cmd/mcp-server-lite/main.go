// Package main provides the lightweight entry point for the symptom triage MCP server.
// It requires no external services: sessions are cached in memory and everything else
// lives in SQLite files under the data directory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/symptom-triage-mcp/internal/app"
	"github.com/symptom-triage-mcp/internal/config"
	"github.com/symptom-triage-mcp/internal/logging"
	"github.com/symptom-triage-mcp/internal/mcp"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	logger, err := logging.NewLogger(cfg.LoggingConfig())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	logger.WithField("data_dir", cfg.DataDir).Info("Starting symptom triage MCP server (lite)")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	stack, err := app.NewLiteStack(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer stack.Close()

	server, err := mcp.NewServer(stack.Triage, stack.Feedback,
		mcp.WithLogger(logger),
		mcp.WithCatalog(stack.Catalog),
		mcp.WithFeedbackStore(stack.FeedbackStore, cfg.ExportDir()),
	)
	if err != nil {
		logger.WithError(err).Error("Failed to create MCP server")
		return
	}

	// Start MCP server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("Symptom triage MCP server (lite) stopped")
}
