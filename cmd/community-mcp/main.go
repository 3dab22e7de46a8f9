// Package main provides the entry point for the community-mcp MCP server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/config"
	"github.com/rich7420/community-ai-agent-sub001/internal/db"
	"github.com/rich7420/community-ai-agent-sub001/internal/server"
	"github.com/rich7420/community-ai-agent-sub001/internal/tools"
)

const version = "0.1.0"

func main() {
	records := flag.String("records", "", "comma-separated record files to serve from memory instead of SurrealDB")
	wipeDB := flag.Bool("wipe", false, "wipe all records from the database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("community-mcp starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"embed_provider", cfg.EmbedProvider,
		"embed_model", cfg.EmbedModel,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var opts app.Options
	if *records != "" {
		opts.RecordFiles = strings.Split(*records, ",")
	}

	a, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing resources")
		_ = a.Close(context.Background())
	}()

	if *wipeDB {
		if client, ok := a.Store.(*db.Client); ok {
			logger.Warn("wiping database")
			if err := client.WipeData(ctx); err != nil {
				logger.Error("failed to wipe database", "error", err)
				os.Exit(1)
			}
		}
	}

	srv := server.New(version, logger)
	srv.Setup()

	tools.RegisterAll(srv.MCPServer(), toolDependencies(a, config.Component(logger, "tools")))

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// toolDependencies exposes a to the tool handlers. The assistant is only set
// when one was built, so the handlers' nil checks see a nil interface rather
// than a nil *qa.Assistant.
func toolDependencies(a *app.App, logger *slog.Logger) *tools.Dependencies {
	deps := &tools.Dependencies{
		Retriever: a.Engine,
		Ingest:    a.Ingest,
		Jobs:      a.Jobs,
		Metrics:   a.Metrics,
		Embedder:  a.Embedder,
		Health:    a,
		Logger:    logger,
	}
	if a.Assistant != nil {
		deps.Assistant = a.Assistant
		deps.Answers = a.Assistant
	}
	return deps
}
