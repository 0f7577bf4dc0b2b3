// Package config loads the server configuration from the environment or a
// YAML file and assembles the media service and cache invalidation stack.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// ServerConfig represents server configuration for the simple-media service
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"` // text, json

	// Database configuration. DatabaseType is derived from DatabaseURL.
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL" env-default:"memory"`
	DatabaseType string `yaml:"-"`
	DBSchema     string `yaml:"db_schema" env:"DB_SCHEMA"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE" env-default:"false"`

	// Storage configuration. Storage is derived from StorageURL.
	StorageURL      string        `yaml:"storage_url" env:"STORAGE_URL" env-default:"memory://"`
	Storage         StorageConfig `yaml:"-"`
	StorageRoot     string        `yaml:"storage_root" env:"STORAGE_ROOT" env-default:"./data/storage"`
	PublicRoot      string        `yaml:"public_root" env:"PUBLIC_ROOT" env-default:"./public"`
	DisableFallback bool          `yaml:"disable_fallback" env:"DISABLE_FALLBACK"`

	// Cache configuration. CacheType is derived from CacheURL.
	CacheURL    string `yaml:"cache_url" env:"CACHE_URL" env-default:"memory://"`
	CacheType   string `yaml:"-"`
	CachePrefix string `yaml:"cache_prefix" env:"CACHE_PREFIX" env-default:"simple-media:"`

	// Public URLs
	PublicBaseURL string   `yaml:"public_base_url" env:"PUBLIC_BASE_URL"` // CDN in front of the blob store
	URLStrategy   string   `yaml:"url_strategy" env:"URL_STRATEGY"`       // cdn, static, storage-delegated; empty picks one
	MediaVersion  string   `yaml:"media_version" env:"MEDIA_VERSION"`     // appended as ?v= by the cdn strategy
	SiteBaseURL   string   `yaml:"site_base_url" env:"SITE_BASE_URL" env-default:"http://localhost:8080"`
	Divisions     []string `yaml:"divisions" env:"SITE_DIVISIONS" env-separator:","`

	// Admin API
	CORSOrigins    []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`
	APICacheMaxAge time.Duration `yaml:"api_cache_max_age" env:"API_CACHE_MAX_AGE" env-default:"0s"`

	WebPQuality int `yaml:"webp_quality" env:"WEBP_QUALITY" env-default:"80"`
}

// StorageConfig is the parsed form of STORAGE_URL.
type StorageConfig struct {
	Type            string // memory, fs, s3, minio, gcs
	BaseDir         string
	Bucket          string
	Region          string
	Endpoint        string
	UseSSL          bool
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
	CredentialsFile string
	EmulatorHost    string
}

// Load reads the environment, applies the supplied options and validates
// the result.
func Load(opts ...Option) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return finish(&cfg, opts)
}

// LoadFile reads a YAML file, lets environment variables override it, then
// applies options and validates.
func LoadFile(path string, opts ...Option) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return finish(&cfg, opts)
}

func finish(cfg *ServerConfig, opts []Option) (*ServerConfig, error) {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve derives the typed settings from the connection URLs.
func (c *ServerConfig) resolve() error {
	var err error
	if c.DatabaseType, c.DatabaseURL, err = parseDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}
	if c.Storage, err = parseStorageURL(c.StorageURL); err != nil {
		return err
	}
	if c.CacheType, err = parseCacheURL(c.CacheURL); err != nil {
		return err
	}
	return nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Environment {
	case "development", "production", "testing":
	default:
		return fmt.Errorf("environment must be development, production or testing, got %q", c.Environment)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json'")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.Storage.Type == "" {
		return errors.New("storage_url is required")
	}
	if c.FallbackEnabled() {
		if c.StorageRoot == "" || c.PublicRoot == "" {
			return errors.New("storage_root and public_root are required when fallback is enabled")
		}
		// The public link exposes StorageRoot, so an fs backend must write there.
		if c.Storage.Type == "fs" && !sameDir(c.Storage.BaseDir, c.StorageRoot) {
			return fmt.Errorf("storage_root %q must match the file:// storage_url path %q when fallback is enabled",
				c.StorageRoot, c.Storage.BaseDir)
		}
	}

	if c.APICacheMaxAge < 0 {
		return errors.New("api_cache_max_age cannot be negative")
	}

	if c.WebPQuality < 1 || c.WebPQuality > 100 {
		return fmt.Errorf("webp_quality must be between 1 and 100")
	}

	switch c.URLStrategy {
	case "", "cdn", "static", "storage-delegated":
	default:
		return fmt.Errorf("url_strategy must be cdn, static or storage-delegated, got %q", c.URLStrategy)
	}
	if c.URLStrategy == "cdn" && c.PublicBaseURL == "" {
		return errors.New("public_base_url is required for the cdn url strategy")
	}

	u, err := url.Parse(c.SiteBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site_base_url must be an absolute URL, got %q", c.SiteBaseURL)
	}
	if c.PublicBaseURL != "" {
		if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" {
			return fmt.Errorf("public_base_url must be an absolute URL, got %q", c.PublicBaseURL)
		}
	}
	return nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// FallbackEnabled reports whether writes go through the fallback store. The
// in-memory backend never uses it.
func (c *ServerConfig) FallbackEnabled() bool {
	return !c.DisableFallback && c.Storage.Type != "memory"
}

// WithPort overrides the listen port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithEnvironment overrides the runtime environment
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL overrides DATABASE_URL
func WithDatabaseURL(raw string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = raw
		return nil
	}
}

// WithStorageURL overrides STORAGE_URL
func WithStorageURL(raw string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = raw
		return nil
	}
}

// WithCacheURL overrides CACHE_URL
func WithCacheURL(raw string) Option {
	return func(c *ServerConfig) error {
		c.CacheURL = raw
		return nil
	}
}

// WithRoots sets the storage root and the public web root
func WithRoots(storageRoot, publicRoot string) Option {
	return func(c *ServerConfig) error {
		c.StorageRoot = storageRoot
		c.PublicRoot = publicRoot
		return nil
	}
}

// WithFallback toggles the direct-write fallback and public link upkeep
func WithFallback(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.DisableFallback = !enabled
		return nil
	}
}

// WithSiteBaseURL sets the base URL used in the sitemap
func WithSiteBaseURL(raw string) Option {
	return func(c *ServerConfig) error {
		c.SiteBaseURL = strings.TrimSuffix(raw, "/")
		return nil
	}
}

// WithPublicBaseURL serves media from a CDN base URL
func WithPublicBaseURL(raw string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = raw
		return nil
	}
}

// WithDivisions sets the division slugs listed in the sitemap
func WithDivisions(slugs ...string) Option {
	return func(c *ServerConfig) error {
		c.Divisions = slugs
		return nil
	}
}
