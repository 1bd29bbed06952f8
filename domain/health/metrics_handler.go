package health

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archgraph-io/archgraph/domain/loaders"
)

// MetricsHandler exposes loader metrics: raw per-loader counters, the
// derived performance report, and the Prometheus scrape endpoint.
type MetricsHandler struct {
	collector *loaders.Collector
	registry  *prometheus.Registry
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(collector *loaders.Collector, registry *prometheus.Registry) *MetricsHandler {
	return &MetricsHandler{
		collector: collector,
		registry:  registry,
	}
}

// LoaderMetricsResponse wraps the per-loader snapshot with a timestamp.
type LoaderMetricsResponse struct {
	Loaders   map[string]loaders.LoaderMetrics `json:"loaders"`
	Timestamp string                           `json:"timestamp"`
}

// LoaderMetrics returns the per-loader counter snapshot
// @Summary      Get loader metrics
// @Description  Returns request, cache, and batch counters for every loader seen since startup
// @Tags         metrics
// @Produce      json
// @Success      200 {object} LoaderMetricsResponse "Loader metrics"
// @Router       /api/metrics/loaders [get]
func (h *MetricsHandler) LoaderMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, LoaderMetricsResponse{
		Loaders:   h.collector.Metrics(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// LoaderReport returns the derived performance report
// @Summary      Get loader performance report
// @Description  Returns hit-rate, batch-size, and latency insights with tuning recommendations
// @Tags         metrics
// @Produce      json
// @Success      200 {object} loaders.PerformanceReport "Performance report"
// @Router       /api/metrics/loaders/report [get]
func (h *MetricsHandler) LoaderReport(c echo.Context) error {
	return c.JSON(http.StatusOK, h.collector.PerformanceReport())
}

// Prometheus serves the registry in the Prometheus exposition format.
func (h *MetricsHandler) Prometheus() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}
