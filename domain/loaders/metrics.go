package loaders

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/archgraph-io/archgraph/pkg/logger"
)

// LoaderMetrics is a point-in-time snapshot of one loader's counters.
// Derived fields are computed when the snapshot is taken, never stored.
type LoaderMetrics struct {
	TotalRequests   int64         `json:"total_requests"`
	BatchedRequests int64         `json:"batched_requests"`
	CacheHits       int64         `json:"cache_hits"`
	CacheMisses     int64         `json:"cache_misses"`
	BatchCount      int64         `json:"batch_count"`
	TotalBatchSize  int64         `json:"total_batch_size"`
	TotalBatchTime  time.Duration `json:"total_batch_time"`

	// Derived
	HitRate      float64       `json:"hit_rate"`
	AvgBatchSize float64       `json:"avg_batch_size"`
	AvgBatchTime time.Duration `json:"avg_batch_time"`
}

type loaderCounters struct {
	totalRequests   int64
	batchedRequests int64
	cacheHits       int64
	cacheMisses     int64
	batchCount      int64
	totalBatchSize  int64
	totalBatchTime  time.Duration
}

// Collector aggregates loader behavior process-wide. It is provided once
// via fx and shared by every loader instance across all requests, so all
// methods are safe for concurrent use. Recording never panics and never
// returns an error: observability must not affect load paths.
type Collector struct {
	mu       sync.RWMutex
	counters map[string]*loaderCounters
	log      *slog.Logger

	loads      *prometheus.CounterVec
	batches    *prometheus.CounterVec
	batchSizes *prometheus.HistogramVec
	batchTime  *prometheus.HistogramVec
}

// NewCollector creates a collector and registers its Prometheus metrics on
// reg. Registration failures are logged and ignored; the in-process
// counters work either way.
func NewCollector(reg prometheus.Registerer, log *slog.Logger) *Collector {
	c := &Collector{
		counters: make(map[string]*loaderCounters),
		log:      log.With(logger.Scope("loaders.metrics")),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archgraph_loader_loads_total",
			Help: "Loader load calls by loader name and cache result.",
		}, []string{"loader", "result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archgraph_loader_batches_total",
			Help: "Physical batch dispatches by loader name.",
		}, []string{"loader"}),
		batchSizes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archgraph_loader_batch_size",
			Help:    "Keys per physical batch dispatch.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"loader"}),
		batchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archgraph_loader_batch_duration_seconds",
			Help:    "Duration of physical batch dispatches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"loader"}),
	}

	if reg != nil {
		for _, m := range []prometheus.Collector{c.loads, c.batches, c.batchSizes, c.batchTime} {
			if err := reg.Register(m); err != nil {
				c.log.Warn("metrics registration failed", logger.Error(err))
			}
		}
	}

	return c
}

// RecordLoad records one load call and whether it hit the cache.
func (c *Collector) RecordLoad(loader string, hit bool) {
	defer c.recoverFrom("RecordLoad")

	c.mu.Lock()
	lc := c.countersLocked(loader)
	lc.totalRequests++
	if hit {
		lc.cacheHits++
	} else {
		lc.cacheMisses++
		lc.batchedRequests++
	}
	c.mu.Unlock()

	result := "miss"
	if hit {
		result = "hit"
	}
	c.loads.WithLabelValues(loader, result).Inc()
}

// RecordBatch records one physical batch dispatch.
func (c *Collector) RecordBatch(loader string, size int, d time.Duration) {
	defer c.recoverFrom("RecordBatch")

	c.mu.Lock()
	lc := c.countersLocked(loader)
	lc.batchCount++
	lc.totalBatchSize += int64(size)
	lc.totalBatchTime += d
	c.mu.Unlock()

	c.batches.WithLabelValues(loader).Inc()
	c.batchSizes.WithLabelValues(loader).Observe(float64(size))
	c.batchTime.WithLabelValues(loader).Observe(d.Seconds())
}

// Metrics returns a snapshot for every loader seen so far.
func (c *Collector) Metrics() map[string]LoaderMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]LoaderMetrics, len(c.counters))
	for name, lc := range c.counters {
		m := LoaderMetrics{
			TotalRequests:   lc.totalRequests,
			BatchedRequests: lc.batchedRequests,
			CacheHits:       lc.cacheHits,
			CacheMisses:     lc.cacheMisses,
			BatchCount:      lc.batchCount,
			TotalBatchSize:  lc.totalBatchSize,
			TotalBatchTime:  lc.totalBatchTime,
		}
		if m.TotalRequests > 0 {
			m.HitRate = float64(m.CacheHits) / float64(m.TotalRequests)
		}
		if m.BatchCount > 0 {
			m.AvgBatchSize = float64(m.TotalBatchSize) / float64(m.BatchCount)
			m.AvgBatchTime = m.TotalBatchTime / time.Duration(m.BatchCount)
		}
		out[name] = m
	}
	return out
}

// Reset clears all counters. Intended for tests.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]*loaderCounters)
}

// PerformanceReport summarizes loader behavior with derived insights.
type PerformanceReport struct {
	GeneratedAt     time.Time                `json:"generated_at"`
	TotalRequests   int64                    `json:"total_requests"`
	OverallHitRate  float64                  `json:"overall_hit_rate"`
	Loaders         map[string]LoaderMetrics `json:"loaders"`
	Insights        []string                 `json:"insights"`
	Recommendations []string                 `json:"recommendations"`
}

// PerformanceReport derives a health report from the current snapshot.
func (c *Collector) PerformanceReport() *PerformanceReport {
	snapshot := c.Metrics()

	report := &PerformanceReport{
		GeneratedAt: time.Now().UTC(),
		Loaders:     snapshot,
	}

	var totalHits int64
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := snapshot[name]
		report.TotalRequests += m.TotalRequests
		totalHits += m.CacheHits

		// Only judge loaders with enough traffic to mean anything.
		if m.TotalRequests < 10 {
			continue
		}
		if m.HitRate < 0.5 {
			report.Insights = append(report.Insights,
				fmt.Sprintf("loader %q has a %.0f%% cache hit rate", name, m.HitRate*100))
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("consider a longer TTL or request-level priming for %q", name))
		}
		if m.BatchCount > 0 && m.AvgBatchSize < 2 {
			report.Insights = append(report.Insights,
				fmt.Sprintf("loader %q averages %.1f keys per batch; coalescing is not engaging", name, m.AvgBatchSize))
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("check that callers of %q issue loads concurrently within one request", name))
		}
		if m.BatchCount > 0 && m.AvgBatchTime > 500*time.Millisecond {
			report.Insights = append(report.Insights,
				fmt.Sprintf("loader %q batches average %s; the backing query may need an index", name, m.AvgBatchTime.Round(time.Millisecond)))
		}
	}

	if report.TotalRequests > 0 {
		report.OverallHitRate = float64(totalHits) / float64(report.TotalRequests)
	}
	return report
}

// countersLocked returns the counters for loader, creating them if needed.
// Caller must hold c.mu.
func (c *Collector) countersLocked(loader string) *loaderCounters {
	lc, ok := c.counters[loader]
	if !ok {
		lc = &loaderCounters{}
		c.counters[loader] = lc
	}
	return lc
}

// recoverFrom swallows panics from metrics bookkeeping. A metrics failure
// must never surface to a Load caller.
func (c *Collector) recoverFrom(op string) {
	if r := recover(); r != nil {
		c.log.Error("metrics recording failed",
			slog.String("op", op),
			slog.Any("panic", r),
		)
	}
}
