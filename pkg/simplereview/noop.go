package simplereview

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// NoopNotifier is a no-operation implementation of Notifier
type NoopNotifier struct{}

// NewNoopNotifier creates a new no-operation notifier
func NewNoopNotifier() Notifier {
	return &NoopNotifier{}
}

// Notify does nothing and returns nil
func (n *NoopNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	return nil
}

// NoopPageInvalidator is a no-operation implementation of PageInvalidator
type NoopPageInvalidator struct{}

// NewNoopPageInvalidator creates a new no-operation page invalidator
func NewNoopPageInvalidator() PageInvalidator {
	return &NoopPageInvalidator{}
}

// InvalidatePages does nothing and returns nil
func (n *NoopPageInvalidator) InvalidatePages(ctx context.Context, keys ...string) error {
	return nil
}

// NoopCache computes every value and stores nothing. Every lookup is a miss.
type NoopCache struct {
	misses atomic.Uint64
}

// NewNoopCache creates a cache that never caches
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	c.misses.Add(1)
	return compute(ctx)
}

func (c *NoopCache) Invalidate(keysOrPrefixes ...string) {}

func (c *NoopCache) Clear() {}

func (c *NoopCache) Stats() CacheStats {
	return CacheStats{Misses: c.misses.Load()}
}

// inlineQueue runs tasks synchronously on the caller's goroutine. It is the
// fallback when no background queue is configured; failures are logged.
type inlineQueue struct {
	logger *slog.Logger
}

func newInlineQueue(logger *slog.Logger) *inlineQueue {
	return &inlineQueue{logger: logger}
}

func (q *inlineQueue) Submit(name string, fn func(ctx context.Context) error) error {
	if err := fn(context.Background()); err != nil {
		q.logger.Error("task failed", "task", name, "err", err)
	}
	return nil
}
