// Package main provides the entry point for the ArchGraph API server
//
// @title ArchGraph API
// @version 0.3.0
// @description Architecture knowledge graph API with request-scoped batched data access
// @host localhost:4300
// @BasePath /
// @schemes http https
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/archgraph-io/archgraph/domain/graph"
	"github.com/archgraph-io/archgraph/domain/health"
	"github.com/archgraph-io/archgraph/domain/knowledge"
	"github.com/archgraph-io/archgraph/domain/loaders"
	"github.com/archgraph-io/archgraph/domain/scheduler"
	"github.com/archgraph-io/archgraph/domain/tracing"
	"github.com/archgraph-io/archgraph/internal/config"
	"github.com/archgraph-io/archgraph/internal/database"
	"github.com/archgraph-io/archgraph/internal/migrate"
	"github.com/archgraph-io/archgraph/internal/server"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,
		tracing.Module,

		// Domain modules
		health.Module,
		graph.Module,
		loaders.Module,
		knowledge.Module,

		// Scheduler module (cron-based scheduled tasks)
		scheduler.Module,
	).Run()
}
