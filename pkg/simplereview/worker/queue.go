// Package worker runs post-commit side effects (page invalidation,
// notifications, download ledger appends) on a bounded pool of goroutines.
// Each task is retried with exponential backoff; a task that still fails is
// logged and dropped, never surfaced to the request that queued it.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/backoff/v2"

	"github.com/tendant/simple-review/pkg/simplereview"
)

var (
	ErrQueueFull   = errors.New("worker queue is full")
	ErrQueueClosed = errors.New("worker queue is closed")
)

const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
	DefaultMaxAttempts = 3
	DefaultTaskTimeout = 30 * time.Second
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Stats reports queue activity since start.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
	Retries   uint64 `json:"retries"`
}

// Queue is a simplereview.TaskQueue backed by a fixed worker pool.
type Queue struct {
	logger      *slog.Logger
	workers     int
	size        int
	maxAttempts int
	timeout     time.Duration
	policy      backoff.Policy

	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc

	submitted, succeeded, failed, rejected, retries atomic.Uint64
}

var _ simplereview.TaskQueue = (*Queue)(nil)

// Option configures a Queue.
type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.size = n
		}
	}
}

// WithMaxAttempts sets how many times a task runs before it is dropped.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithTaskTimeout bounds a single attempt.
func WithTaskTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithBackoff sets the interval range between attempts.
func WithBackoff(min, max time.Duration) Option {
	return func(q *Queue) {
		q.policy = backoff.Exponential(
			backoff.WithMinInterval(min),
			backoff.WithMaxInterval(max),
			backoff.WithJitterFactor(0.1),
		)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New starts the workers. Close must be called to release them.
func New(opts ...Option) *Queue {
	q := &Queue{
		logger:      slog.Default(),
		workers:     DefaultWorkers,
		size:        DefaultQueueSize,
		maxAttempts: DefaultMaxAttempts,
		timeout:     DefaultTaskTimeout,
	}
	WithBackoff(100*time.Millisecond, 5*time.Second)(q)
	for _, opt := range opts {
		opt(q)
	}

	q.tasks = make(chan task, q.size)
	q.ctx, q.cancel = context.WithCancel(context.Background())
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	return q
}

// Submit enqueues fn without blocking. It fails when the queue is full or
// closed; callers log the error and move on.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.rejected.Add(1)
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
		q.submitted.Add(1)
		return nil
	default:
		q.rejected.Add(1)
		q.logger.Warn("worker queue full, dropping task", "task", name, "queue_size", q.size)
		return ErrQueueFull
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.execute(t)
	}
}

func (q *Queue) execute(t task) {
	b := q.policy.Start(q.ctx)
	var err error
	attempt := 0
	for backoff.Continue(b) {
		attempt++
		if attempt > 1 {
			q.retries.Add(1)
		}
		if err = q.attempt(t); err == nil {
			q.succeeded.Add(1)
			return
		}
		if attempt >= q.maxAttempts {
			break
		}
		q.logger.Debug("task failed, retrying", "task", t.name, "attempt", attempt, "err", err)
	}
	if err == nil {
		err = q.ctx.Err()
	}
	q.failed.Add(1)
	q.logger.Error("task failed", "task", t.name, "attempts", attempt, "err", err)
}

func (q *Queue) attempt(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("task panicked")
			q.logger.Error("task panicked", "task", t.name, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()
	return t.fn(ctx)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Rejected:  q.rejected.Load(),
		Retries:   q.retries.Load(),
	}
}

// Close stops accepting tasks, drains the ones already queued and waits for
// the workers to exit. It is safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
	return nil
}
