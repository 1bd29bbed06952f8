package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/archgraph-io/archgraph/domain/graph"
	"github.com/archgraph-io/archgraph/domain/loaders"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

// MetricsReportTask periodically logs a loader performance report so cache
// regressions show up in the logs without anyone polling the metrics endpoint.
type MetricsReportTask struct {
	collector *loaders.Collector
	log       *slog.Logger
}

// NewMetricsReportTask creates a new metrics report task
func NewMetricsReportTask(collector *loaders.Collector, log *slog.Logger) *MetricsReportTask {
	return &MetricsReportTask{
		collector: collector,
		log:       log.With(logger.Scope("scheduler.metrics_report")),
	}
}

// Run generates the report and logs its findings
func (t *MetricsReportTask) Run(ctx context.Context) error {
	report := t.collector.PerformanceReport()

	if report.TotalRequests == 0 {
		t.log.Debug("no loader traffic since last reset")
		return nil
	}

	t.log.Info("loader performance report",
		slog.Int64("total_requests", report.TotalRequests),
		slog.Float64("overall_hit_rate", report.OverallHitRate),
		slog.Int("loaders", len(report.Loaders)))

	for _, insight := range report.Insights {
		t.log.Warn("loader insight", slog.String("insight", insight))
	}
	for _, rec := range report.Recommendations {
		t.log.Info("loader recommendation", slog.String("recommendation", rec))
	}

	return nil
}

// GraphPurgeTask hard-deletes soft-deleted graph rows once they have aged
// past the retention window. Until then they stay recoverable.
type GraphPurgeTask struct {
	repo      *graph.Repository
	log       *slog.Logger
	retention time.Duration
	mu        sync.RWMutex
}

// NewGraphPurgeTask creates a new graph purge task
func NewGraphPurgeTask(repo *graph.Repository, log *slog.Logger, retention time.Duration) *GraphPurgeTask {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &GraphPurgeTask{
		repo:      repo,
		log:       log.With(logger.Scope("scheduler.graph_purge")),
		retention: retention,
	}
}

// SetRetention updates the retention window at runtime.
func (t *GraphPurgeTask) SetRetention(retention time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retention = retention
}

// GetRetention returns the current retention window.
func (t *GraphPurgeTask) GetRetention() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.retention
}

// Run executes the purge
func (t *GraphPurgeTask) Run(ctx context.Context) error {
	start := time.Now()

	t.mu.RLock()
	retention := t.retention
	t.mu.RUnlock()

	purged, err := t.repo.PurgeDeleted(ctx, retention)
	if err != nil {
		t.log.Error("failed to purge deleted graph rows",
			slog.String("error", err.Error()))
		return err
	}

	if purged > 0 {
		t.log.Info("purged deleted graph rows",
			slog.Int64("count", purged),
			slog.Duration("retention", retention),
			slog.Duration("duration", time.Since(start)))
	} else {
		t.log.Debug("no graph rows past retention",
			slog.Duration("duration", time.Since(start)))
	}

	return nil
}
