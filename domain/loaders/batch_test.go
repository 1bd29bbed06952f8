package loaders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCollector() *Collector {
	return NewCollector(nil, testLogger())
}

func testConfig(name string) Config {
	return Config{
		Name:          name,
		MaxBatchSize:  10,
		Wait:          5 * time.Millisecond,
		TTL:           time.Minute,
		CacheMaxSize:  100,
		SweepInterval: time.Minute,
	}
}

// countingFetch records every chunk of keys it is invoked with.
type countingFetch struct {
	mu     sync.Mutex
	chunks [][]string
}

func (f *countingFetch) record(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk := make([]string, len(keys))
	copy(chunk, keys)
	f.chunks = append(f.chunks, chunk)
}

func (f *countingFetch) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

func (f *countingFetch) echo(ctx context.Context, keys []string) ([]Result[string], error) {
	f.record(keys)
	results := make([]Result[string], len(keys))
	for i, k := range keys {
		results[i] = Result[string]{Value: "v:" + k}
	}
	return results, nil
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig("valid")
	require.NoError(t, valid.validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"zero batch size", func(c *Config) { c.MaxBatchSize = 0 }},
		{"negative wait", func(c *Config) { c.Wait = -time.Millisecond }},
		{"zero ttl", func(c *Config) { c.TTL = 0 }},
		{"zero cache size", func(c *Config) { c.CacheMaxSize = 0 }},
		{"zero sweep interval", func(c *Config) { c.SweepInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("bad")
			tc.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestNewRejectsNilFetch(t *testing.T) {
	_, err := New[string](testConfig("nilfetch"), nil, testCollector(), testLogger())
	require.Error(t, err)
}

func TestLoadCoalescesConcurrentCalls(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("coalesce"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	const n = 8
	var wg sync.WaitGroup
	values := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i], errs[i] = l.Load(context.Background(), "k1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "v:k1", values[i])
	}
	assert.Equal(t, 1, fetch.calls(), "all concurrent loads must share one fetch")
	assert.Equal(t, []string{"k1"}, fetch.chunks[0], "identical keys must be deduplicated")
}

func TestLoadManyPreservesKeyOrder(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("order"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	results := l.LoadMany(context.Background(), []string{"a", "b", "c"})
	require.Len(t, results, 3)
	assert.Equal(t, "v:a", results[0].Value)
	assert.Equal(t, "v:b", results[1].Value)
	assert.Equal(t, "v:c", results[2].Value)
	assert.Equal(t, 1, fetch.calls())
}

func TestLoadManyDeduplicatesKeys(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("dedup"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	results := l.LoadMany(context.Background(), []string{"a", "a", "b"})
	require.Len(t, results, 3)
	assert.Equal(t, "v:a", results[0].Value)
	assert.Equal(t, "v:a", results[1].Value)
	assert.Equal(t, "v:b", results[2].Value)
	require.Equal(t, 1, fetch.calls())
	assert.Equal(t, []string{"a", "b"}, fetch.chunks[0])
}

func TestLoadManyEmptySkipsFetch(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("empty"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	results := l.LoadMany(context.Background(), nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, fetch.calls())
}

func TestBatchErrorResolvesEveryKey(t *testing.T) {
	boom := errors.New("connection refused")
	var calls atomic.Int32
	fetch := func(ctx context.Context, keys []string) ([]Result[string], error) {
		calls.Add(1)
		return nil, boom
	}
	l, err := New(testConfig("batcherr"), fetch, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	results := l.LoadMany(context.Background(), []string{"a", "b", "c"})
	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, boom)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, l.CachedKeys(), "errors must never be cached")
}

func TestInlineErrorIsScopedToItsKey(t *testing.T) {
	missing := errors.New("backing row corrupt")
	fetch := func(ctx context.Context, keys []string) ([]Result[string], error) {
		results := make([]Result[string], len(keys))
		for i, k := range keys {
			if k == "bad" {
				results[i] = Result[string]{Err: missing}
				continue
			}
			results[i] = Result[string]{Value: "v:" + k}
		}
		return results, nil
	}
	l, err := New(testConfig("inline"), fetch, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	results := l.LoadMany(context.Background(), []string{"good", "bad"})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "v:good", results[0].Value)
	assert.ErrorIs(t, results[1].Err, missing)
	assert.Equal(t, 1, l.CachedKeys(), "only the successful key is cached")
}

func TestResultLengthMismatchIsContractError(t *testing.T) {
	fetch := func(ctx context.Context, keys []string) ([]Result[string], error) {
		return []Result[string]{{Value: "only-one"}}, nil
	}
	l, err := New(testConfig("contract"), fetch, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	results := l.LoadMany(context.Background(), []string{"a", "b"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, ErrBatchContract)
	}
	assert.Zero(t, l.CachedKeys())
}

func TestPrimeRoundTrip(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("prime"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	l.Prime("k1", "primed")
	v, err := l.Load(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "primed", v)
	assert.Zero(t, fetch.calls(), "a primed key must not fetch")
}

func TestCachedLoadSkipsSecondFetch(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("cached"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(context.Background(), "k1")
	require.NoError(t, err)
	_, err = l.Load(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetch.calls())
}

func TestExpiredEntryTriggersFreshFetch(t *testing.T) {
	fetch := &countingFetch{}
	cfg := testConfig("expiry")
	cfg.TTL = 20 * time.Millisecond
	l, err := New(cfg, fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(context.Background(), "k1")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = l.Load(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetch.calls())
}

func TestFullWindowDispatchesAndSplits(t *testing.T) {
	fetch := &countingFetch{}
	cfg := testConfig("split")
	cfg.MaxBatchSize = 2
	l, err := New(cfg, fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	keys := []string{"a", "b", "c", "d", "e"}
	results := l.LoadMany(context.Background(), keys)
	require.Len(t, results, 5)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "v:"+keys[i], r.Value)
	}

	assert.Equal(t, 3, fetch.calls())
	for _, chunk := range fetch.chunks {
		assert.LessOrEqual(t, len(chunk), 2)
	}
}

func TestCallerTimeoutDoesNotAbortBatch(t *testing.T) {
	release := make(chan struct{})
	fetch := &countingFetch{}
	slowFetch := func(ctx context.Context, keys []string) ([]Result[string], error) {
		<-release
		return fetch.echo(ctx, keys)
	}
	l, err := New(testConfig("timeout"), slowFetch, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Load(ctx, "k1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool { return l.CachedKeys() == 1 },
		time.Second, 5*time.Millisecond,
		"the batch must still complete and populate the cache")

	v, err := l.Load(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "v:k1", v)
	assert.Equal(t, 1, fetch.calls())
}

func TestPanickingFetchBecomesBatchError(t *testing.T) {
	fetch := func(ctx context.Context, keys []string) ([]Result[string], error) {
		panic("backing store exploded")
	}
	l, err := New(testConfig("panic"), fetch, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(context.Background(), "k1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestClearForcesRefetch(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("clear"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(context.Background(), "k1")
	require.NoError(t, err)
	l.Clear("k1")
	_, err = l.Load(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, 2, fetch.calls())
}

func TestClearWhereEvictsByPredicate(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("clearwhere"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	l.Prime("node-1|DEPENDS_ON|out", "a")
	l.Prime("node-1|CONFLICTS_WITH|both", "b")
	l.Prime("node-2|DEPENDS_ON|out", "c")

	l.ClearWhere(func(key string) bool {
		return len(key) > 7 && key[:7] == "node-1|"
	})
	assert.Equal(t, 1, l.CachedKeys())
}

func TestSequentialLoadsShareWindow(t *testing.T) {
	fetch := &countingFetch{}
	cfg := testConfig("window")
	cfg.Wait = 50 * time.Millisecond
	l, err := New(cfg, fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()

	// Enqueue without waiting, then resolve: both keys must land in the
	// window armed by the first.
	t1 := l.loadThunk(context.Background(), "a")
	t2 := l.loadThunk(context.Background(), "b")
	v1, err1 := t1()
	v2, err2 := t2()
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, "v:a", v1)
	assert.Equal(t, "v:b", v2)
	require.Equal(t, 1, fetch.calls())
	assert.Equal(t, []string{"a", "b"}, fetch.chunks[0])
}

func TestLoaderNameIsConfigName(t *testing.T) {
	fetch := &countingFetch{}
	l, err := New(testConfig("named"), fetch.echo, testCollector(), testLogger())
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "named", l.Name())
}

func ExampleLoader_Load() {
	fetch := func(ctx context.Context, keys []string) ([]Result[string], error) {
		results := make([]Result[string], len(keys))
		for i, k := range keys {
			results[i] = Result[string]{Value: "value-for-" + k}
		}
		return results, nil
	}
	l, _ := New(Config{
		Name:          "example",
		MaxBatchSize:  50,
		Wait:          2 * time.Millisecond,
		TTL:           time.Minute,
		CacheMaxSize:  100,
		SweepInterval: time.Minute,
	}, fetch, NewCollector(nil, slog.New(slog.NewTextHandler(io.Discard, nil))), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer l.Close()

	v, _ := l.Load(context.Background(), "42")
	fmt.Println(v)
	// Output: value-for-42
}
