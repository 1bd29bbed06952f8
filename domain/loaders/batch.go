package loaders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/archgraph-io/archgraph/pkg/logger"
	"github.com/archgraph-io/archgraph/pkg/tracing"
)

// Result is one per-key outcome of a batch fetch. Exactly one of Value and
// Err is meaningful; a missing entity is a nil Value with a nil Err.
type Result[V any] struct {
	Value V
	Err   error
}

// BatchFunc fetches values for a set of keys in one round trip.
// results[i] must correspond to keys[i]; a length mismatch is a contract
// violation. A non-nil error resolves every key of the call to that error.
type BatchFunc[V any] func(ctx context.Context, keys []string) ([]Result[V], error)

// Config controls one loader instance. Validated at construction so a bad
// profile fails at factory-build time, not at first load.
type Config struct {
	// Name identifies the loader in metrics, logs, and ClearByPattern.
	Name string

	// MaxBatchSize caps keys per physical fetch; larger windows are split
	// into sequential chunks.
	MaxBatchSize int

	// Wait is the debounce window: the first key of a batch arms a timer,
	// and every load arriving before it fires joins the same batch.
	Wait time.Duration

	// TTL is how long a cached value stays valid.
	TTL time.Duration

	// CacheMaxSize bounds the cache; oldest-inserted entries are evicted
	// first once it is exceeded.
	CacheMaxSize int

	// SweepInterval is the period of the background expiry sweep.
	SweepInterval time.Duration
}

func (c Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("loader config: name is required")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("loader %q: max batch size must be positive, got %d", c.Name, c.MaxBatchSize)
	}
	if c.Wait <= 0 {
		return fmt.Errorf("loader %q: batch wait must be positive, got %s", c.Name, c.Wait)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("loader %q: ttl must be positive, got %s", c.Name, c.TTL)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("loader %q: cache max size must be positive, got %d", c.Name, c.CacheMaxSize)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("loader %q: sweep interval must be positive, got %s", c.Name, c.SweepInterval)
	}
	return nil
}

// Loader coalesces concurrent loads for string keys into batched fetches
// and caches results with a TTL. One Loader instance belongs to one request
// bundle; only the metrics collector is shared beyond it.
type Loader[V any] struct {
	cfg     Config
	fetch   BatchFunc[V]
	cache   *ttlCache[V]
	metrics *Collector
	log     *slog.Logger

	mu      sync.Mutex
	pending *batch[V]
}

// batch accumulates keys during one debounce window. results is populated
// before done is closed; after that both are read-only.
type batch[V any] struct {
	ctx     context.Context
	keys    []string
	index   map[string]int
	timer   *time.Timer
	done    chan struct{}
	results []Result[V]
}

// New creates a loader. The config is validated; construction is the only
// place a loader can fail.
func New[V any](cfg Config, fetch BatchFunc[V], metrics *Collector, log *slog.Logger) (*Loader[V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if fetch == nil {
		return nil, fmt.Errorf("loader %q: batch function is required", cfg.Name)
	}
	return &Loader[V]{
		cfg:     cfg,
		fetch:   fetch,
		cache:   newTTLCache[V](cfg.TTL, cfg.CacheMaxSize, cfg.SweepInterval),
		metrics: metrics,
		log:     log.With(logger.Scope("loaders." + cfg.Name)),
	}, nil
}

// Name returns the loader's configured name.
func (l *Loader[V]) Name() string { return l.cfg.Name }

// Load returns the value for key, joining the current batch window on a
// cache miss. A ctx deadline bounds only this caller's wait: the batch
// itself always runs to completion so sibling callers and the cache still
// get the result.
func (l *Loader[V]) Load(ctx context.Context, key string) (V, error) {
	return l.loadThunk(ctx, key)()
}

// LoadMany loads all keys together. Every key is enqueued before any wait
// begins, so one LoadMany call lands in a single batch (split only by
// MaxBatchSize). Per-key failures do not affect sibling keys.
func (l *Loader[V]) LoadMany(ctx context.Context, keys []string) []Result[V] {
	if len(keys) == 0 {
		return []Result[V]{}
	}

	thunks := make([]func() (V, error), len(keys))
	for i, key := range keys {
		thunks[i] = l.loadThunk(ctx, key)
	}

	results := make([]Result[V], len(keys))
	for i, thunk := range thunks {
		value, err := thunk()
		results[i] = Result[V]{Value: value, Err: err}
	}
	return results
}

// Prime seeds the cache without a fetch, typically right after a write.
func (l *Loader[V]) Prime(key string, value V) {
	l.cache.set(key, value)
}

// primeAny is Prime behind the bundle's type-erased view. It reports false
// when value is not the loader's value type.
func (l *Loader[V]) primeAny(key string, value any) bool {
	v, ok := value.(V)
	if !ok {
		return false
	}
	l.cache.set(key, v)
	return true
}

// Clear evicts one key from the cache. In-flight batches are unaffected.
func (l *Loader[V]) Clear(key string) {
	l.cache.delete(key)
}

// ClearAll evicts every cached entry.
func (l *Loader[V]) ClearAll() {
	l.cache.clear()
}

// ClearWhere evicts every cached entry whose key satisfies pred. Used by
// the invalidation service for composite relationship keys.
func (l *Loader[V]) ClearWhere(pred func(key string) bool) {
	l.cache.deleteWhere(pred)
}

// Close stops the cache sweep goroutine. The loader must not be used after.
func (l *Loader[V]) Close() {
	l.cache.close()
}

// CachedKeys reports how many entries the cache currently holds.
func (l *Loader[V]) CachedKeys() int {
	return l.cache.len()
}

// loadThunk resolves the cache or joins the pending batch, returning a
// function that waits for the result. Splitting enqueue from wait is what
// lets LoadMany put all of its keys into one window.
func (l *Loader[V]) loadThunk(ctx context.Context, key string) func() (V, error) {
	if value, ok := l.cache.get(key); ok {
		l.metrics.RecordLoad(l.cfg.Name, true)
		return func() (V, error) { return value, nil }
	}
	l.metrics.RecordLoad(l.cfg.Name, false)

	l.mu.Lock()
	b := l.pending
	if b == nil {
		b = &batch[V]{
			// Detached from the caller: a caller-side timeout must not
			// abort the batch for its sibling awaiters.
			ctx:   context.WithoutCancel(ctx),
			index: make(map[string]int),
			done:  make(chan struct{}),
		}
		b.timer = time.AfterFunc(l.cfg.Wait, func() { l.flush(b) })
		l.pending = b
	}

	idx, ok := b.index[key]
	if !ok {
		idx = len(b.keys)
		b.keys = append(b.keys, key)
		b.index[key] = idx
	}

	// A full window dispatches immediately rather than waiting out the
	// timer; later loads start a fresh batch.
	if !ok && len(b.keys) >= l.cfg.MaxBatchSize && l.pending == b {
		b.timer.Stop()
		l.pending = nil
		go l.dispatch(b)
	}
	l.mu.Unlock()

	return func() (V, error) {
		select {
		case <-b.done:
			r := b.results[idx]
			return r.Value, r.Err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
}

// flush detaches the batch from the loader and dispatches it. Called by
// the window timer; a size-triggered dispatch has already detached it.
func (l *Loader[V]) flush(b *batch[V]) {
	l.mu.Lock()
	if l.pending == b {
		l.pending = nil
	}
	l.mu.Unlock()
	l.dispatch(b)
}

// dispatch runs the batch function over the collected keys, splitting into
// MaxBatchSize chunks. Successful values are cached; errors are attributed
// to their keys and never cached, so unrelated keys and later batches are
// unaffected.
func (l *Loader[V]) dispatch(b *batch[V]) {
	defer close(b.done)

	ctx, span := tracing.Start(b.ctx, "loaders.batch",
		attribute.String("archgraph.loader", l.cfg.Name),
		attribute.Int("archgraph.batch.size", len(b.keys)),
	)
	defer span.End()

	b.results = make([]Result[V], len(b.keys))

	for start := 0; start < len(b.keys); start += l.cfg.MaxBatchSize {
		end := start + l.cfg.MaxBatchSize
		if end > len(b.keys) {
			end = len(b.keys)
		}
		chunk := b.keys[start:end]

		began := time.Now()
		results, err := l.safeFetch(ctx, chunk)
		l.metrics.RecordBatch(l.cfg.Name, len(chunk), time.Since(began))

		if err == nil && len(results) != len(chunk) {
			err = fmt.Errorf("%w: loader %q returned %d results for %d keys",
				ErrBatchContract, l.cfg.Name, len(results), len(chunk))
		}
		if err != nil {
			l.log.Error("batch fetch failed",
				slog.Int("batch_size", len(chunk)),
				slog.String("keys_sample", sampleKeys(chunk, 5)),
				logger.Error(err),
			)
			for i := range chunk {
				b.results[start+i] = Result[V]{Err: err}
			}
			continue
		}

		for i, r := range results {
			b.results[start+i] = r
			if r.Err == nil {
				l.cache.set(chunk[i], r.Value)
			}
		}
	}
}

// safeFetch shields the dispatch loop from a panicking batch function; the
// panic becomes a batch-level error for that chunk only.
func (l *Loader[V]) safeFetch(ctx context.Context, keys []string) (results []Result[V], err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("batch function panicked: %v", r)
		}
	}()
	return l.fetch(ctx, keys)
}

func sampleKeys(keys []string, n int) string {
	if len(keys) <= n {
		return strings.Join(keys, ",")
	}
	return strings.Join(keys[:n], ",") + ",..."
}
