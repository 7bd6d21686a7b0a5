// Package cache provides the in-process read-through cache for derived
// views. Keys are hierarchical; invalidating a prefix drops every key under
// it, including values still being computed.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/tendant/simple-review/pkg/simplereview"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	value      any
	computedAt time.Time
	expiresAt  time.Time
}

// computed is what a flight hands its waiters; cached marks a value that
// was found stored rather than computed.
type computed struct {
	value  any
	cached bool
}

// flight tracks one in-progress computation. A flight marked stale by an
// invalidation still answers its own waiters but never writes its result.
type flight struct {
	stale bool
}

// Cache is a TTL cache with single-flight computation and prefix
// invalidation. The zero value is not usable; call New.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	inflight map[string]*flight
	group    singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64

	defaultTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger

	cronMu sync.Mutex
	cron   *cron.Cron
}

var _ simplereview.Cache = (*Cache)(nil)

// Option configures a Cache
type Option func(*Cache)

// WithDefaultTTL sets the TTL used when callers pass a non-positive ttl
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger used by the janitor
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates an empty cache
func New(options ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		inflight:   make(map[string]*flight),
		defaultTTL: DefaultTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// GetOrCompute returns the live entry for key, or runs compute once for all
// concurrent callers of that key and stores the result. Errors are returned
// to every waiter and never cached. compute runs detached from the caller's
// cancellation so one caller leaving does not fail the others.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	// Counted up front so waiters are visible; moved to hits if the flight
	// finds a stored value after all.
	c.misses.Add(1)

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		// A flight that finished between lookup and Do may already have filled it.
		if v, ok := c.lookup(key); ok {
			return computed{value: v, cached: true}, nil
		}

		f := &flight{}
		c.mu.Lock()
		c.inflight[key] = f
		c.mu.Unlock()

		value, err := compute(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.inflight[key] == f {
			delete(c.inflight, key)
		}
		if err != nil || f.stale {
			return computed{value: value}, err
		}
		now := c.now()
		c.entries[key] = entry{value: value, computedAt: now, expiresAt: now.Add(ttl)}
		return computed{value: value}, nil
	})
	r, _ := res.(computed)
	if r.cached {
		c.misses.Add(^uint64(0))
		c.hits.Add(1)
	}
	return r.value, err
}

// Invalidate removes every entry whose key starts with one of the given
// keys or prefixes, and detaches matching computations so that later
// callers recompute. Empty arguments are ignored.
func (c *Cache) Invalidate(keysOrPrefixes ...string) {
	prefixes := keysOrPrefixes[:0:0]
	for _, p := range keysOrPrefixes {
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if matches(key, prefixes) {
			delete(c.entries, key)
		}
	}
	for key, f := range c.inflight {
		if matches(key, prefixes) {
			f.stale = true
			delete(c.inflight, key)
			c.group.Forget(key)
		}
	}
}

func matches(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Clear drops every entry and detaches every running computation.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	for key, f := range c.inflight {
		f.stale = true
		c.group.Forget(key)
	}
	c.inflight = make(map[string]*flight)
}

func (c *Cache) Stats() simplereview.CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return simplereview.CacheStats{Hits: hits, Misses: misses, HitRate: rate, EntryCount: count}
}

// Sweep removes expired entries and returns how many were dropped. Lookups
// already ignore expired entries; sweeping only reclaims memory.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartJanitor schedules Sweep with a cron spec such as "@every 1m".
func (c *Cache) StartJanitor(spec string) error {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron != nil {
		return nil
	}
	cr := cron.New()
	_, err := cr.AddFunc(spec, func() {
		if n := c.Sweep(); n > 0 {
			c.logger.Debug("cache sweep", "removed", n)
		}
	})
	if err != nil {
		return err
	}
	cr.Start()
	c.cron = cr
	return nil
}

// Close stops the janitor and waits for a running sweep to finish.
func (c *Cache) Close() error {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron == nil {
		return nil
	}
	<-c.cron.Stop().Done()
	c.cron = nil
	return nil
}
