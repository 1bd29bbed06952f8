package loaders

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/archgraph-io/archgraph/domain/graph"
	"github.com/archgraph-io/archgraph/internal/config"
)

// Module provides the process-wide pieces of the loader subsystem: the
// Prometheus registry, the metrics collector, and the factory. DataLoaders
// bundles and Invalidators are request-scoped and built by middleware, not
// by the container.
var Module = fx.Module("loaders",
	fx.Provide(
		newRegistry,
		newCollector,
		newFactory,
	),
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newCollector(reg *prometheus.Registry, log *slog.Logger) *Collector {
	return NewCollector(reg, log)
}

func newFactory(cfg *config.Config, exec graph.Executor, metrics *Collector, log *slog.Logger) (*Factory, error) {
	return NewFactory(exec, metrics, log, Options{
		Profile:       cfg.Loaders.Profile,
		MaxBatchSize:  cfg.Loaders.MaxBatchSize,
		BatchWait:     cfg.Loaders.BatchWait,
		CacheMaxSize:  cfg.Loaders.CacheMaxSize,
		SweepInterval: cfg.Loaders.SweepInterval,
	})
}
