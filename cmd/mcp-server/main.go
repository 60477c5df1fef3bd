// Package main serves the triage MCP tools over stdio, backed by Postgres and Redis.
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
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// stdout carries MCP frames
	logCfg := configManager.GetConfig().Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	stack, err := app.NewFullStack(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer stack.Close()

	server, err := mcp.NewServer(stack.Triage, stack.Feedback,
		mcp.WithLogger(logger),
		mcp.WithCatalog(stack.Catalog),
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

	logger.Info("Symptom triage MCP server stopped")
}
