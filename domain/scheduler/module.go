package scheduler

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/archgraph-io/archgraph/domain/graph"
	"github.com/archgraph-io/archgraph/domain/loaders"
)

// Module provides scheduled task functionality
var Module = fx.Module("scheduler",
	fx.Provide(
		NewConfig,
		NewScheduler,
	),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains dependencies for creating scheduled tasks
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	Repo      *graph.Repository
	Collector *loaders.Collector
	Log       *slog.Logger
	Cfg       *Config
}

// RegisterTasks registers all scheduled tasks
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	reportTask := NewMetricsReportTask(p.Collector, p.Log)
	if err := addScheduledTask(p.Scheduler, p.Log, "metrics_report",
		p.Cfg.MetricsReportSchedule, p.Cfg.MetricsReportInterval, reportTask.Run); err != nil {
		p.Log.Error("failed to register metrics report task",
			slog.String("error", err.Error()))
	}

	retention := time.Duration(p.Cfg.GraphPurgeRetentionHours) * time.Hour
	purgeTask := NewGraphPurgeTask(p.Repo, p.Log, retention)
	if err := addScheduledTask(p.Scheduler, p.Log, "graph_purge",
		p.Cfg.GraphPurgeSchedule, p.Cfg.GraphPurgeInterval, purgeTask.Run); err != nil {
		p.Log.Error("failed to register graph purge task",
			slog.String("error", err.Error()))
	}

	p.Log.Info("registered scheduled tasks",
		slog.Any("tasks", p.Scheduler.ListTasks()))

	return nil
}

// addScheduledTask registers a task under its cron schedule when one is
// configured, falling back to the fixed interval otherwise.
func addScheduledTask(s *Scheduler, log *slog.Logger, name, cronSchedule string, interval time.Duration, task TaskFunc) error {
	if cronSchedule != "" {
		log.Debug("using cron schedule for task",
			slog.String("task", name),
			slog.String("schedule", cronSchedule))
		return s.AddCronTask(name, cronSchedule, task)
	}
	return s.AddIntervalTask(name, interval, task)
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *Config) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
