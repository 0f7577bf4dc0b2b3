// Package presets assembles ready-to-use media stacks for common setups.
package presets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

// NewDevelopment creates a stack for local development.
//
// Features:
//   - In-memory database (instant startup, no setup required)
//   - Filesystem storage under ./dev-data/storage, exposed through
//     ./dev-data/public/storage
//   - In-memory cache with the default invalidation rules
//   - Sitemap regenerated into ./dev-data/public
//
// The returned cleanup function closes the stack and removes the data
// directory.
//
// Example:
//
//	comps, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (*config.Components, func(), error) {
	cfg := &devConfig{
		dataDir: "./dev-data",
		port:    "8080",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	storageRoot := filepath.Join(cfg.dataDir, "storage")
	publicRoot := filepath.Join(cfg.dataDir, "public")

	serverCfg, err := config.Load(
		config.WithPort(cfg.port),
		config.WithEnvironment("development"),
		config.WithDatabaseURL("memory"),
		config.WithStorageURL("file://"+storageRoot),
		config.WithCacheURL("memory://"),
		config.WithRoots(storageRoot, publicRoot),
		config.WithFallback(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load development config: %w", err)
	}

	comps, err := serverCfg.Build(context.Background(), cfg.build...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build development stack: %w", err)
	}

	cleanup := func() {
		_ = comps.Close()
		os.RemoveAll(cfg.dataDir)
	}
	return comps, cleanup, nil
}

// NewTesting creates an isolated in-memory stack for tests. The sitemap is
// written to a per-test temporary directory and everything is released via
// t.Cleanup.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    comps := presets.NewTesting(t)
//	    asset, err := comps.Service.UploadImage(ctx, req)
//	    ...
//	}
func NewTesting(t testing.TB, opts ...TestingOption) *config.Components {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	configOpts := []config.Option{
		config.WithEnvironment("testing"),
		config.WithDatabaseURL("memory"),
		config.WithStorageURL("memory://"),
		config.WithCacheURL("memory://"),
		config.WithRoots(t.TempDir(), t.TempDir()),
	}
	if len(cfg.divisions) > 0 {
		configOpts = append(configOpts, config.WithDivisions(cfg.divisions...))
	}

	serverCfg, err := config.Load(configOpts...)
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	comps, err := serverCfg.Build(context.Background(), cfg.build...)
	if err != nil {
		t.Fatalf("failed to build test stack: %v", err)
	}
	t.Cleanup(func() {
		_ = comps.Close()
	})
	return comps
}

// NewProduction builds the stack from the environment and refuses the
// in-memory backends.
//
// Required Environment Variables:
//   - DATABASE_URL: PostgreSQL connection string
//   - STORAGE_URL: file://, s3://, minio:// or gs:// URL
//
// Optional Environment Variables:
//   - CACHE_URL: redis:// URL shared by all instances
//   - PUBLIC_BASE_URL: CDN base URL for media
//   - SITE_BASE_URL, SITE_DIVISIONS: sitemap settings
func NewProduction(ctx context.Context, opts ...ProductionOption) (*config.Components, error) {
	cfg := &prodConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	serverCfg, err := config.Load(append([]config.Option{config.WithEnvironment("production")}, cfg.config...)...)
	if err != nil {
		return nil, err
	}
	if serverCfg.DatabaseType == "memory" {
		return nil, fmt.Errorf("production preset requires DATABASE_URL=postgres://... (memory not allowed in production)")
	}
	if serverCfg.Storage.Type == "memory" {
		return nil, fmt.Errorf("production preset requires persistent storage (file, s3, minio or gs, not memory)")
	}
	return serverCfg.Build(ctx, cfg.build...)
}

type devConfig struct {
	dataDir string
	port    string
	build   []config.BuildOption
}

type testConfig struct {
	divisions []string
	build     []config.BuildOption
}

type prodConfig struct {
	config []config.Option
	build  []config.BuildOption
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevDataDir sets the development data directory
func WithDevDataDir(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.dataDir = dir
	}
}

// WithDevPort sets the development server port
func WithDevPort(port string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.port = port
	}
}

// WithDevBuild passes build options through, e.g. an alternate encoder
func WithDevBuild(opts ...config.BuildOption) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.build = append(cfg.build, opts...)
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestDivisions lists division slugs in the generated sitemap
func WithTestDivisions(slugs ...string) TestingOption {
	return func(cfg *testConfig) {
		cfg.divisions = slugs
	}
}

// WithTestBuild passes build options through
func WithTestBuild(opts ...config.BuildOption) TestingOption {
	return func(cfg *testConfig) {
		cfg.build = append(cfg.build, opts...)
	}
}

// ProductionOption is a functional option for NewProduction
type ProductionOption func(*prodConfig)

// WithProdConfig applies config options on top of the environment
func WithProdConfig(opts ...config.Option) ProductionOption {
	return func(cfg *prodConfig) {
		cfg.config = append(cfg.config, opts...)
	}
}

// WithProdBuild passes build options through
func WithProdBuild(opts ...config.BuildOption) ProductionOption {
	return func(cfg *prodConfig) {
		cfg.build = append(cfg.build, opts...)
	}
}
