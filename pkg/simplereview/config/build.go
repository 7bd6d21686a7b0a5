package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/cache"
	"github.com/tendant/simple-review/pkg/simplereview/identity"
	"github.com/tendant/simple-review/pkg/simplereview/pagecache"
	"github.com/tendant/simple-review/pkg/simplereview/presigned"
	memoryrepo "github.com/tendant/simple-review/pkg/simplereview/repo/memory"
	repopg "github.com/tendant/simple-review/pkg/simplereview/repo/postgres"
	fsstorage "github.com/tendant/simple-review/pkg/simplereview/storage/fs"
	memorystorage "github.com/tendant/simple-review/pkg/simplereview/storage/memory"
	s3storage "github.com/tendant/simple-review/pkg/simplereview/storage/s3"
	"github.com/tendant/simple-review/pkg/simplereview/worker"
)

// Engine is a configured service together with the collaborators the
// process needs direct access to.
type Engine struct {
	Service simplereview.Service
	Cache   *cache.Cache
	Queue   *worker.Queue
	Signer  *presigned.Signer
	// Auth is nil when no JWT secret is configured; every request is then anonymous.
	Auth *identity.Authenticator

	redis *redis.Client
}

// Close shuts the service down, then releases the Redis connection.
func (e *Engine) Close() error {
	var errs []error
	if e.Service != nil {
		errs = append(errs, e.Service.Close())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	return errors.Join(errs...)
}

// BuildEngine connects every backend named by the configuration and creates
// the service. Postgres schemas are migrated before use.
func (c *ServerConfig) BuildEngine(ctx context.Context, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := c.buildStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	content, err := c.buildContentStore(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build content store: %w", err)
	}

	engine := &Engine{
		Cache: cache.New(cache.WithDefaultTTL(c.CacheTTL), cache.WithLogger(logger)),
		Queue: worker.New(
			worker.WithWorkers(c.WorkerCount),
			worker.WithQueueSize(c.WorkerQueueSize),
			worker.WithMaxAttempts(c.WorkerMaxAttempts),
			worker.WithLogger(logger),
		),
		Signer: presigned.New(
			presigned.WithSecretKey(c.MediaSigningSecret),
			presigned.WithWindow(c.MediaURLWindow),
			presigned.WithPrefix(c.MediaURLPrefix),
		),
	}
	if c.JWTSecret != "" {
		engine.Auth = identity.NewAuthenticator(c.JWTSecret)
	}

	pages, err := c.buildPageInvalidator(ctx, engine, logger)
	if err != nil {
		_ = engine.Queue.Close()
		store.Close()
		return nil, err
	}

	if c.CacheSweepSchedule != "" {
		if err := engine.Cache.StartJanitor(c.CacheSweepSchedule); err != nil {
			_ = engine.Queue.Close()
			store.Close()
			return nil, fmt.Errorf("failed to start cache janitor: %w", err)
		}
	}

	policy := simplereview.DefaultUploadPolicy()
	policy.MaxImageBytes = c.MaxImageBytes
	policy.MaxDocumentBytes = c.MaxDocumentBytes

	svc, err := simplereview.New(
		simplereview.WithStore(store),
		simplereview.WithContentStore(content),
		simplereview.WithCache(engine.Cache),
		simplereview.WithCacheTTLs(c.CacheTTL, c.CacheTTL),
		simplereview.WithTaskQueue(engine.Queue),
		simplereview.WithPageInvalidator(pages),
		simplereview.WithURLSigner(engine.Signer),
		simplereview.WithUploadPolicy(policy),
		simplereview.WithLogger(logger),
	)
	if err != nil {
		_ = engine.Queue.Close()
		_ = engine.Cache.Close()
		store.Close()
		return nil, err
	}
	engine.Service = svc
	return engine, nil
}

func (c *ServerConfig) buildStore(ctx context.Context) (simplereview.Store, error) {
	if !c.UsesPostgres() {
		return memoryrepo.New(), nil
	}
	store, err := repopg.Connect(ctx, c.DatabaseURL, c.DBSchema)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (c *ServerConfig) buildContentStore(ctx context.Context) (simplereview.ContentStore, error) {
	loc, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}
	switch loc.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: loc.BaseDir})
	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:       loc.Region,
			Bucket:       loc.Bucket,
			Prefix:       loc.Prefix,
			Endpoint:     loc.Endpoint,
			UsePathStyle: loc.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", loc.Type)
	}
}

func (c *ServerConfig) buildPageInvalidator(ctx context.Context, engine *Engine, logger *slog.Logger) (simplereview.PageInvalidator, error) {
	logged := pagecache.NewLogInvalidator(logger)
	if c.RedisURL == "" {
		return logged, nil
	}
	client, err := pagecache.Connect(ctx, c.RedisURL)
	if err != nil {
		return nil, err
	}
	engine.redis = client
	return pagecache.Multi{logged, pagecache.NewRedisInvalidator(client, c.PageChannel)}, nil
}
