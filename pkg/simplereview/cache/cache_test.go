package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func constant(v any, calls *atomic.Int32) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		calls.Add(1)
		return v, nil
	}
}

func TestGetOrCompute_HitAndMiss(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls atomic.Int32

	v, err := c.GetOrCompute(ctx, "scripts/published/limit=50", time.Minute, constant("first", &calls))
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = c.GetOrCompute(ctx, "scripts/published/limit=50", time.Minute, constant("second", &calls))
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, int32(1), calls.Load())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.Equal(t, 1, stats.EntryCount)
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	c := New()
	release := make(chan struct{})
	var calls atomic.Int32

	compute := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "leaderboard/likes/limit=10", time.Minute, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Let every goroutine reach the flight before releasing it.
	require.Eventually(t, func() bool { return c.Stats().Misses == callers }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

// scriptedClock answers queued times first, then the last one forever.
type scriptedClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (s *scriptedClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.times[0]
	if len(s.times) > 1 {
		s.times = s.times[1:]
	}
	return t
}

func TestGetOrCompute_LateFillCountsAsHit(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// The first call only reads the clock to store. On the second the outer
	// lookup sees the entry as expired and the inner one sees it live.
	clock := &scriptedClock{times: []time.Time{start, start.Add(time.Hour), start}}
	c := New(WithClock(clock.Now))
	ctx := context.Background()
	var calls atomic.Int32

	_, err := c.GetOrCompute(ctx, "script/x/detail", time.Minute, constant("stored", &calls))
	require.NoError(t, err)

	v, err := c.GetOrCompute(ctx, "script/x/detail", time.Minute, constant("recomputed", &calls))
	require.NoError(t, err)
	assert.Equal(t, "stored", v)
	assert.Equal(t, int32(1), calls.Load())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c := New()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetOrCompute(ctx, "k", time.Minute, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	v, err := c.GetOrCompute(ctx, "k", time.Minute, func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, c.Stats().EntryCount)
}

func TestGetOrCompute_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(WithClock(clock.Now))
	ctx := context.Background()
	var calls atomic.Int32

	_, err := c.GetOrCompute(ctx, "k", time.Minute, constant(1, &calls))
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = c.GetOrCompute(ctx, "k", time.Minute, constant(2, &calls))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(time.Second)
	v, err := c.GetOrCompute(ctx, "k", time.Minute, constant(3, &calls))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidate_Prefixes(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls atomic.Int32
	keys := []string{
		"scripts/pending/limit=50&offset=0",
		"scripts/published/limit=50&offset=0",
		"scripts/all/limit=50&offset=0",
		"script/abc/detail",
		"script/abd/detail",
		"leaderboard/likes/limit=10",
	}
	for _, k := range keys {
		_, err := c.GetOrCompute(ctx, k, time.Minute, constant(k, &calls))
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		prefixes  []string
		remaining int
	}{
		{"empty argument is ignored", []string{""}, 6},
		{"missing key is a no-op", []string{"scripts/rejected/"}, 6},
		{"per-script bucket does not touch siblings", []string{"script/abc/"}, 5},
		{"idempotent", []string{"script/abc/"}, 5},
		{"several buckets at once", []string{"scripts/pending/", "scripts/all/"}, 3},
		{"exact key", []string{"leaderboard/likes/limit=10"}, 2},
		{"script prefix does not match scripts lists", []string{"script/"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.Invalidate(tt.prefixes...)
			assert.Equal(t, tt.remaining, c.Stats().EntryCount)
		})
	}
}

func TestInvalidate_DuringComputation(t *testing.T) {
	c := New()
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan any)
	go func() {
		v, _ := c.GetOrCompute(ctx, "scripts/pending/limit=50", time.Minute, func(context.Context) (any, error) {
			close(started)
			<-release
			return "before commit", nil
		})
		done <- v
	}()

	<-started
	c.Invalidate("scripts/pending/")

	// A caller arriving after the invalidation must not join the stale flight.
	v, err := c.GetOrCompute(ctx, "scripts/pending/limit=50", time.Minute, func(context.Context) (any, error) {
		return "after commit", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after commit", v)

	close(release)
	assert.Equal(t, "before commit", <-done)

	v, err = c.GetOrCompute(ctx, "scripts/pending/limit=50", time.Minute, func(context.Context) (any, error) {
		return "recomputed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after commit", v)
}

func TestClear(t *testing.T) {
	c := New()
	var calls atomic.Int32
	for _, k := range []string{"a/", "b/", "c/"} {
		_, err := c.GetOrCompute(context.Background(), k, time.Minute, constant(k, &calls))
		require.NoError(t, err)
	}
	c.Clear()
	assert.Equal(t, 0, c.Stats().EntryCount)
}

func TestSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(WithClock(clock.Now))
	var calls atomic.Int32
	_, _ = c.GetOrCompute(context.Background(), "short", time.Second, constant(1, &calls))
	_, _ = c.GetOrCompute(context.Background(), "long", time.Hour, constant(2, &calls))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Stats().EntryCount)
}

func TestJanitorLifecycle(t *testing.T) {
	c := New()
	require.Error(t, c.StartJanitor("not a schedule"))
	require.NoError(t, c.StartJanitor("@every 1m"))
	require.NoError(t, c.StartJanitor("@every 1m"))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestCollector(t *testing.T) {
	c := New()
	var calls atomic.Int32
	_, _ = c.GetOrCompute(context.Background(), "k", time.Minute, constant(1, &calls))
	_, _ = c.GetOrCompute(context.Background(), "k", time.Minute, constant(1, &calls))

	assert.Equal(t, 4, testutil.CollectAndCount(NewCollector(c, "simplereview")))
}
