package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/cache"
	memorycache "github.com/tendant/simple-media/pkg/simplemedia/cache/memory"
	rediscache "github.com/tendant/simple-media/pkg/simplemedia/cache/redis"
	"github.com/tendant/simple-media/pkg/simplemedia/cachekey"
	"github.com/tendant/simple-media/pkg/simplemedia/derivative"
	"github.com/tendant/simple-media/pkg/simplemedia/derivative/webp"
	"github.com/tendant/simple-media/pkg/simplemedia/invalidation"
	repomemory "github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
	repopg "github.com/tendant/simple-media/pkg/simplemedia/repo/postgres"
	"github.com/tendant/simple-media/pkg/simplemedia/sitemap"
	"github.com/tendant/simple-media/pkg/simplemedia/storage/fallback"
	fsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
	gcsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/gcs"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	miniostorage "github.com/tendant/simple-media/pkg/simplemedia/storage/minio"
	s3storage "github.com/tendant/simple-media/pkg/simplemedia/storage/s3"
	"github.com/tendant/simple-media/pkg/simplemedia/urlstrategy"
	"github.com/tendant/simple-media/pkg/simplemedia/validation"
)

// BuildOption supplies runtime collaborators that cannot come from the
// environment.
type BuildOption func(*buildSettings)

type buildSettings struct {
	logger    *slog.Logger
	alternate derivative.Encoder
	divisions sitemap.DivisionLister
	rules     []cachekey.RuleSpec
}

// WithLogger sets the logger handed to every component
func WithLogger(logger *slog.Logger) BuildOption {
	return func(s *buildSettings) {
		s.logger = logger
	}
}

// WithAlternateEncoder replaces the WebP encoder built from WebPQuality
func WithAlternateEncoder(enc derivative.Encoder) BuildOption {
	return func(s *buildSettings) {
		s.alternate = enc
	}
}

// WithDivisionLister replaces the configured division slugs in the sitemap
func WithDivisionLister(l sitemap.DivisionLister) BuildOption {
	return func(s *buildSettings) {
		s.divisions = l
	}
}

// WithCacheRules replaces the default cache rule table
func WithCacheRules(rules []cachekey.RuleSpec) BuildOption {
	return func(s *buildSettings) {
		s.rules = rules
	}
}

// Components is the assembled runtime.
type Components struct {
	Service     simplemedia.Service
	Repository  simplemedia.Repository
	BlobStore   simplemedia.BlobStore
	Fallback    *fallback.Store // nil unless enabled
	Registry    *cachekey.Registry
	Cache       cache.Cache
	Invalidator *invalidation.Engine
	Sitemap     *sitemap.Publisher

	closers []func() error
}

// Close releases pools and clients in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Build assembles every component described by the configuration.
func (c *ServerConfig) Build(ctx context.Context, opts ...BuildOption) (*Components, error) {
	settings := buildSettings{logger: slog.Default(), rules: cachekey.DefaultRules()}
	for _, opt := range opts {
		opt(&settings)
	}
	logger := settings.logger
	comps := &Components{}

	fail := func(err error) (*Components, error) {
		_ = comps.Close()
		return nil, err
	}

	repo, err := c.buildRepository(ctx, comps)
	if err != nil {
		return fail(fmt.Errorf("failed to build repository: %w", err))
	}
	comps.Repository = repo

	store, err := c.buildStorageBackend(ctx, comps)
	if err != nil {
		return fail(fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err))
	}
	if c.FallbackEnabled() {
		fb, err := fallback.New(store, fallback.Config{
			StorageRoot: c.StorageRoot,
			PublicRoot:  c.PublicRoot,
		}, fallback.WithLogger(logger))
		if err != nil {
			return fail(fmt.Errorf("failed to build fallback store: %w", err))
		}
		if err := fb.EnsurePublicAccess(ctx); err != nil {
			logger.WarnContext(ctx, "public storage link unavailable", "link", fb.LinkPath(), "err", err)
		}
		comps.Fallback = fb
		store = fb
	}
	comps.BlobStore = store

	registry, err := cachekey.NewRegistry(settings.rules)
	if err != nil {
		return fail(fmt.Errorf("invalid cache rules: %w", err))
	}
	comps.Registry = registry

	if comps.Cache, err = c.buildCache(comps); err != nil {
		return fail(fmt.Errorf("failed to build cache: %w", err))
	}

	publicStore, err := fsstorage.New(fsstorage.Config{BaseDir: c.PublicRoot})
	if err != nil {
		return fail(fmt.Errorf("failed to open public root: %w", err))
	}
	divisions := settings.divisions
	if divisions == nil {
		divisions = staticDivisions(c.Divisions)
	}
	comps.Sitemap = sitemap.NewPublisher(&sitemap.Builder{
		BaseURL:   c.SiteBaseURL,
		Static:    sitemap.DefaultStatic(),
		Divisions: divisions,
	}, publicStore, sitemap.WithLogger(logger))

	comps.Invalidator, err = invalidation.New(registry, comps.Cache,
		invalidation.WithRegenerator(comps.Sitemap),
		invalidation.WithLogger(logger))
	if err != nil {
		return fail(err)
	}

	urls, err := c.buildURLStrategy(store)
	if err != nil {
		return fail(err)
	}

	alternate := settings.alternate
	if alternate == nil {
		alternate = webp.New(float32(c.WebPQuality))
	}
	genOpts := []derivative.Option{derivative.WithLogger(logger), derivative.WithAlternateEncoder(alternate)}

	svc, err := simplemedia.New(
		simplemedia.WithRepository(repo),
		simplemedia.WithBlobStore(store),
		simplemedia.WithValidator(validation.New()),
		simplemedia.WithGenerator(derivative.New(store, genOpts...)),
		simplemedia.WithThumbnailRenderer(derivative.NewPlaceholder()),
		simplemedia.WithInvalidator(comps.Invalidator),
		simplemedia.WithURLStrategy(urls),
		simplemedia.WithLogger(logger),
	)
	if err != nil {
		return fail(err)
	}
	comps.Service = svc
	return comps, nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, opts ...BuildOption) (simplemedia.Service, error) {
	comps, err := c.Build(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return comps.Service, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context, comps *Components) (simplemedia.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		if schema := c.DBSchema; schema != "" {
			cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
				_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
				return err
			}
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		comps.closers = append(comps.closers, func() error { pool.Close(); return nil })

		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := repo.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildStorageBackend(ctx context.Context, comps *Components) (simplemedia.BlobStore, error) {
	s := c.Storage
	switch s.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: s.BaseDir, URLPrefix: "/storage"})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:          s.Region,
			Bucket:          s.Bucket,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			Endpoint:        s.Endpoint,
			UsePathStyle:    s.UsePathStyle,
			PresignDuration: 3600,
			PublicBaseURL:   c.PublicBaseURL,
		})

	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			Bucket:          s.Bucket,
			UseSSL:          s.UseSSL,
			Region:          s.Region,
			PresignDuration: time.Hour,
		})

	case "gcs":
		b, err := gcsstorage.New(ctx, gcsstorage.Config{
			Bucket:          s.Bucket,
			CredentialsFile: s.CredentialsFile,
			EmulatorHost:    s.EmulatorHost,
			PublicBaseURL:   c.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, b.Close)
		return b, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", s.Type)
	}
}

func (c *ServerConfig) buildCache(comps *Components) (cache.Cache, error) {
	switch c.CacheType {
	case "memory":
		return memorycache.New(), nil
	case "redis":
		rc, err := rediscache.NewFromURL(c.CacheURL, rediscache.WithPrefix(c.CachePrefix))
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, rc.Close)
		return rc, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", c.CacheType)
	}
}

func (c *ServerConfig) buildURLStrategy(store simplemedia.BlobStore) (simplemedia.URLStrategy, error) {
	cfg := urlstrategy.Config{
		Type:       urlstrategy.URLStrategyType(c.URLStrategy),
		CDNBaseURL: c.PublicBaseURL,
		Version:    c.MediaVersion,
	}
	if resolver, ok := store.(urlstrategy.BlobStore); ok {
		cfg.Store = resolver
	}
	if cfg.Type == "" {
		switch {
		case c.PublicBaseURL != "":
			cfg.Type = urlstrategy.StrategyTypeCDN
		case cfg.Store != nil:
			cfg.Type = urlstrategy.StrategyTypeStorageDelegated
		default:
			cfg.Type = urlstrategy.StrategyTypeStatic
		}
	}
	return urlstrategy.NewURLStrategy(cfg)
}

func staticDivisions(slugs []string) sitemap.DivisionLister {
	return sitemap.DivisionListerFunc(func(ctx context.Context) ([]sitemap.Division, error) {
		out := make([]sitemap.Division, 0, len(slugs))
		for _, slug := range slugs {
			if slug != "" {
				out = append(out, sitemap.Division{Slug: slug})
			}
		}
		return out, nil
	})
}
