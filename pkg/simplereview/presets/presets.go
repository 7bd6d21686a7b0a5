// Package presets builds ready-to-use engines for tests and local
// development.
package presets

import (
	"fmt"
	"os"
	"testing"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/cache"
	"github.com/tendant/simple-review/pkg/simplereview/identity"
	memoryrepo "github.com/tendant/simple-review/pkg/simplereview/repo/memory"
	fsstorage "github.com/tendant/simple-review/pkg/simplereview/storage/fs"
	memorystorage "github.com/tendant/simple-review/pkg/simplereview/storage/memory"
	"github.com/tendant/simple-review/pkg/simplereview/worker"
)

// TestEngine is a Service on in-memory backends that also exposes those
// backends for assertions.
type TestEngine struct {
	simplereview.Service

	Store    *memoryrepo.Store
	Content  *memorystorage.Backend
	Cache    *cache.Cache
	Accounts *identity.StaticDirectory
}

// testConfig holds testing preset configuration
type testConfig struct {
	options       []simplereview.Option
	accountChecks bool
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithServiceOptions appends service options after the preset defaults.
func WithServiceOptions(options ...simplereview.Option) TestingOption {
	return func(cfg *testConfig) {
		cfg.options = append(cfg.options, options...)
	}
}

// WithAccountChecks wires engine.Accounts as the account directory, so only
// actors added to it can write.
func WithAccountChecks() TestingOption {
	return func(cfg *testConfig) {
		cfg.accountChecks = true
	}
}

// NewTesting creates an engine for unit and integration tests. Side effects
// run inline, so their results are visible as soon as an operation returns.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    engine := presets.NewTesting(t)
//	    script, err := engine.CreateScript(ctx, actor, req)
//	}
func NewTesting(t testing.TB, opts ...TestingOption) *TestEngine {
	t.Helper()
	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	engine := &TestEngine{
		Store:    memoryrepo.New(),
		Content:  memorystorage.New(),
		Cache:    cache.New(),
		Accounts: identity.NewStaticDirectory(),
	}

	options := []simplereview.Option{
		simplereview.WithStore(engine.Store),
		simplereview.WithContentStore(engine.Content),
		simplereview.WithCache(engine.Cache),
	}
	if cfg.accountChecks {
		options = append(options, simplereview.WithAccountDirectory(engine.Accounts))
	}
	options = append(options, cfg.options...)

	svc, err := simplereview.New(options...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	engine.Service = svc
	t.Cleanup(func() { _ = svc.Close() })
	return engine
}

// devConfig holds development preset configuration
type devConfig struct {
	storageDir string
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// NewDevelopment creates an engine for local development: in-memory
// database, filesystem storage under ./dev-data and a background worker.
// The cleanup function closes the engine and removes the storage directory.
func NewDevelopment(opts ...DevelopmentOption) (simplereview.Service, func(), error) {
	cfg := &devConfig{storageDir: "./dev-data"}
	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := simplereview.New(
		simplereview.WithStore(memoryrepo.New()),
		simplereview.WithContentStore(fsBackend),
		simplereview.WithCache(cache.New()),
		simplereview.WithTaskQueue(worker.New(worker.WithWorkers(2))),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		_ = svc.Close()
		os.RemoveAll(cfg.storageDir)
	}
	return svc, cleanup, nil
}
