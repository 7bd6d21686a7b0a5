package simplereview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultListTTL   = 5 * time.Minute
	DefaultDetailTTL = 10 * time.Minute
	DefaultPageSize  = 50
	MaxPageSize      = 200
)

// service implements the Service interface
type service struct {
	store    Store
	cache    Cache
	content  ContentStore
	signer   URLSigner
	tasks    TaskQueue
	notifier Notifier
	pages    PageInvalidator
	accounts AccountDirectory
	logger   *slog.Logger
	policy   UploadPolicy

	listTTL   time.Duration
	detailTTL time.Duration
	now       func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithStore sets the durable store
func WithStore(store Store) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithCache sets the derived-data cache
func WithCache(cache Cache) Option {
	return func(s *service) {
		s.cache = cache
	}
}

// WithContentStore sets the content-addressed blob store
func WithContentStore(content ContentStore) Option {
	return func(s *service) {
		s.content = content
	}
}

// WithURLSigner sets the signer used to build media URLs
func WithURLSigner(signer URLSigner) Option {
	return func(s *service) {
		s.signer = signer
	}
}

// WithTaskQueue sets the background queue for fire-and-forget side effects
func WithTaskQueue(tasks TaskQueue) Option {
	return func(s *service) {
		s.tasks = tasks
	}
}

// WithNotifier sets the user notifier
func WithNotifier(notifier Notifier) Option {
	return func(s *service) {
		s.notifier = notifier
	}
}

// WithPageInvalidator sets the rendered-page invalidation hook
func WithPageInvalidator(pages PageInvalidator) Option {
	return func(s *service) {
		s.pages = pages
	}
}

// WithAccountDirectory enables stale-session detection
func WithAccountDirectory(accounts AccountDirectory) Option {
	return func(s *service) {
		s.accounts = accounts
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithUploadPolicy overrides the upload acceptance policy
func WithUploadPolicy(policy UploadPolicy) Option {
	return func(s *service) {
		s.policy = policy
	}
}

// WithCacheTTLs overrides list and detail TTLs
func WithCacheTTLs(list, detail time.Duration) Option {
	return func(s *service) {
		if list > 0 {
			s.listTTL = list
		}
		if detail > 0 {
			s.detailTTL = detail
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new review service with the provided options
func New(options ...Option) (Service, error) {
	s := &service{
		cache:     NewNoopCache(),
		notifier:  NewNoopNotifier(),
		pages:     NewNoopPageInvalidator(),
		logger:    slog.Default(),
		policy:    DefaultUploadPolicy(),
		listTTL:   DefaultListTTL,
		detailTTL: DefaultDetailTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, errors.New("store is required")
	}
	if s.content == nil {
		return nil, errors.New("content store is required")
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	if s.tasks == nil {
		s.tasks = newInlineQueue(s.logger)
	}

	return s, nil
}

// authenticate checks the actor carries an identity that still resolves to a
// live account. It runs before any write.
func (s *service) authenticate(ctx context.Context, actor *Actor) error {
	if !actor.IsAuthenticated() {
		return ErrUnauthorized
	}
	if s.accounts == nil {
		return nil
	}
	ok, err := s.accounts.AccountExists(ctx, actor.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve account: %w", err)
	}
	if !ok {
		return ErrStaleSession
	}
	return nil
}

// authorize authenticates the actor and requires at least the given role.
func (s *service) authorize(ctx context.Context, actor *Actor, min Role) error {
	if err := s.authenticate(ctx, actor); err != nil {
		return err
	}
	if !actor.Role.AtLeast(min) {
		return ErrForbidden
	}
	return nil
}

func isAdmin(actor *Actor) bool {
	return actor.IsAuthenticated() && actor.Role.AtLeast(RoleAdmin)
}

// canView reports whether the actor may see a script in its current state.
// Unpublished scripts are visible to their owner and to administrators.
func canView(actor *Actor, script *Script) bool {
	if script.State == StatePublished {
		return true
	}
	if isAdmin(actor) {
		return true
	}
	return actor.IsAuthenticated() && script.OwnedBy(actor.UserID)
}

// canManage reports whether the actor may modify a script's content.
func canManage(actor *Actor, script *Script) bool {
	return isAdmin(actor) || (actor.IsAuthenticated() && script.OwnedBy(actor.UserID))
}

// invalidate runs strictly after commit. Failures never reach the caller.
func (s *service) invalidate(buckets ...string) {
	s.cache.Invalidate(buckets...)

	keys := append([]string(nil), buckets...)
	err := s.tasks.Submit("invalidate_pages", func(ctx context.Context) error {
		return s.pages.InvalidatePages(ctx, keys...)
	})
	if err != nil {
		s.logger.Warn("failed to queue page invalidation", "buckets", keys, "err", err)
	}
}

func (s *service) scriptError(id uuid.UUID, op string, err error) error {
	return &ScriptError{ScriptID: id, Op: op, Err: err}
}

func (s *service) CacheStats() CacheStats {
	return s.cache.Stats()
}

func (s *service) ResetCache(ctx context.Context, actor *Actor) error {
	if err := s.authorize(ctx, actor, RoleSuperuser); err != nil {
		return err
	}
	s.cache.Clear()
	s.logger.Info("cache cleared", "actor", actor.UserID)
	return nil
}

// Close drains the task queue first so queued ledger writes reach the store,
// then releases the cache and the store.
func (s *service) Close() error {
	var errs []error
	if c, ok := s.tasks.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.cache.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	s.store.Close()
	return errors.Join(errs...)
}
