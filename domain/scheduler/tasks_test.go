package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/archgraph-io/archgraph/domain/loaders"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMetricsReportTask_Run_NoTraffic(t *testing.T) {
	collector := loaders.NewCollector(nil, discardLogger())
	task := NewMetricsReportTask(collector, discardLogger())

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run with no traffic should not error, got %v", err)
	}
}

func TestMetricsReportTask_Run_WithTraffic(t *testing.T) {
	collector := loaders.NewCollector(nil, discardLogger())
	for i := 0; i < 20; i++ {
		collector.RecordLoad("requirements", i%2 == 0)
	}
	collector.RecordBatch("requirements", 10, 5*time.Millisecond)

	task := NewMetricsReportTask(collector, discardLogger())
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run with traffic should not error, got %v", err)
	}
}

func TestGraphPurgeTask_RetentionDefault(t *testing.T) {
	task := NewGraphPurgeTask(nil, discardLogger(), 0)

	if got := task.GetRetention(); got != 7*24*time.Hour {
		t.Errorf("GetRetention = %v, want 168h default", got)
	}
}

func TestGraphPurgeTask_SetRetention(t *testing.T) {
	task := NewGraphPurgeTask(nil, discardLogger(), 48*time.Hour)

	if got := task.GetRetention(); got != 48*time.Hour {
		t.Errorf("GetRetention = %v, want 48h", got)
	}

	task.SetRetention(24 * time.Hour)
	if got := task.GetRetention(); got != 24*time.Hour {
		t.Errorf("GetRetention after set = %v, want 24h", got)
	}
}
