package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseURL:        "memory",
		DBSchema:           "review",
		StorageURL:         "memory://",
		MediaURLPrefix:     "/media/",
		MediaURLWindow:     time.Hour,
		PageChannel:        "simplereview:pages:invalidate",
		CacheTTL:           5 * time.Minute,
		CacheSweepSchedule: "@every 1m",
		MaxImageBytes:      5 << 20,
		MaxDocumentBytes:   1 << 20,
		WorkerCount:        4,
		WorkerQueueSize:    256,
		WorkerMaxAttempts:  3,
	}
}

// ServerConfig represents server configuration for the review engine.
// Fields carry cleanenv tags; env-default values only fill fields that are
// still zero, so options applied before WithEnv survive unset variables.
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// Database: "memory" or a postgres:// URL
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" env-default:"memory"`
	DBSchema    string `yaml:"db_schema" env:"DB_SCHEMA" env-default:"review"`

	// Storage: memory://, file:///path or s3://bucket?region=..&endpoint=..&path_style=true
	StorageURL string `yaml:"storage_url" env:"STORAGE_URL" env-default:"memory://"`

	// Media URLs
	MediaURLPrefix     string        `yaml:"media_url_prefix" env:"MEDIA_URL_PREFIX" env-default:"/media/"`
	MediaSigningSecret string        `yaml:"media_signing_secret" env:"MEDIA_SIGNING_SECRET"`
	MediaURLWindow     time.Duration `yaml:"media_url_window" env:"MEDIA_URL_WINDOW" env-default:"1h"`

	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`

	// Page invalidation; without a Redis URL invalidations are only logged
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	PageChannel string `yaml:"page_channel" env:"PAGE_CHANNEL" env-default:"simplereview:pages:invalidate"`

	CacheTTL           time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"5m"`
	CacheSweepSchedule string        `yaml:"cache_sweep_schedule" env:"CACHE_SWEEP_SCHEDULE" env-default:"@every 1m"`

	MaxImageBytes    int64 `yaml:"max_image_bytes" env:"MAX_IMAGE_BYTES" env-default:"5242880"`
	MaxDocumentBytes int64 `yaml:"max_document_bytes" env:"MAX_DOCUMENT_BYTES" env-default:"1048576"`

	WorkerCount       int `yaml:"worker_count" env:"WORKER_COUNT" env-default:"4"`
	WorkerQueueSize   int `yaml:"worker_queue_size" env:"WORKER_QUEUE_SIZE" env-default:"256"`
	WorkerMaxAttempts int `yaml:"worker_max_attempts" env:"WORKER_MAX_ATTEMPTS" env-default:"3"`
}

// WithEnv applies environment variable overrides.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithConfigFile reads a YAML, TOML, JSON or .env file. Environment
// variables still take precedence over the file.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// UsesPostgres reports whether DatabaseURL points at Postgres
func (c *ServerConfig) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Environment {
	case "development", "production", "testing":
	default:
		return fmt.Errorf("environment must be development, production or testing, got: %s", c.Environment)
	}

	if c.DatabaseURL != "memory" && !c.UsesPostgres() {
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", c.DatabaseURL)
	}

	if _, err := ParseStorageURL(c.StorageURL); err != nil {
		return err
	}

	if !strings.HasPrefix(c.MediaURLPrefix, "/") {
		return errors.New("media_url_prefix must start with '/'")
	}
	if c.MediaURLWindow < time.Second {
		return errors.New("media_url_window must be at least one second")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return errors.New("jwt_secret is required in production")
		}
		if c.MediaSigningSecret == "" {
			return errors.New("media_signing_secret is required in production")
		}
	}

	if c.CacheTTL <= 0 {
		return errors.New("cache_ttl must be positive")
	}
	if c.CacheSweepSchedule != "" {
		if _, err := cron.ParseStandard(c.CacheSweepSchedule); err != nil {
			return fmt.Errorf("invalid cache_sweep_schedule %q: %w", c.CacheSweepSchedule, err)
		}
	}

	if c.MaxImageBytes <= 0 || c.MaxDocumentBytes <= 0 {
		return errors.New("upload size ceilings must be positive")
	}
	if c.WorkerCount <= 0 || c.WorkerQueueSize <= 0 || c.WorkerMaxAttempts <= 0 {
		return errors.New("worker count, queue size and max attempts must be positive")
	}

	return nil
}

// StorageLocation is a parsed STORAGE_URL
type StorageLocation struct {
	Type string // "memory", "fs", "s3"

	BaseDir string

	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// ParseStorageURL parses memory://, file:///path and
// s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true&prefix=review
func ParseStorageURL(raw string) (*StorageLocation, error) {
	if raw == "" || raw == "memory" || raw == "memory://" {
		return &StorageLocation{Type: "memory"}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		path := u.Host + u.Path
		if path == "" {
			return nil, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return &StorageLocation{Type: "fs", BaseDir: path}, nil
	case "s3":
		if u.Host == "" {
			return nil, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		query := u.Query()
		loc := &StorageLocation{
			Type:     "s3",
			Bucket:   u.Host,
			Prefix:   strings.Trim(query.Get("prefix"), "/"),
			Region:   query.Get("region"),
			Endpoint: query.Get("endpoint"),
		}
		if loc.Region == "" {
			loc.Region = "us-east-1"
		}
		if v := query.Get("path_style"); v != "" {
			loc.UsePathStyle = v == "true" || v == "1"
		}
		return loc, nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
	}
}
