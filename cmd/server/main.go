package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/api"
	"github.com/symptom-triage-mcp/internal/app"
	"github.com/symptom-triage-mcp/internal/config"
	"github.com/symptom-triage-mcp/internal/logging"
	"github.com/symptom-triage-mcp/internal/middleware"
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
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting symptom triage server")

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

	stack, err := app.NewFullStack(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer stack.Close()

	server := api.NewServer(cfg.Server, api.Dependencies{
		Triage:      stack.Triage,
		Feedback:    stack.Feedback,
		Catalog:     stack.Catalog,
		RateLimiter: middleware.NewRateLimiterFromConfig(cfg.RateLimit),
		Health:      stack.Health,
		Archive:     stack.Archive,
	}, logger)

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
