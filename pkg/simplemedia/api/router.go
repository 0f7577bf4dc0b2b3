package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/cachekey"
)

// Handlers groups the API handlers mounted under /api/v1.
type Handlers struct {
	Media *MediaHandler
	Cache *CacheHandler
}

// NewHandlers wires the media and cache handlers.
func NewHandlers(svc simplemedia.Service, inv simplemedia.Invalidator, registry *cachekey.Registry, logger *slog.Logger) *Handlers {
	return &Handlers{
		Media: NewMediaHandler(svc, logger),
		Cache: NewCacheHandler(inv, registry, logger),
	}
}

// MountOption configures the middleware Mount installs.
type MountOption func(*mountSettings)

type mountSettings struct {
	corsOrigins []string
	cacheMaxAge time.Duration
}

// WithCORS answers cross-origin requests from the given origins. Without it
// no CORS headers are sent.
func WithCORS(origins ...string) MountOption {
	return func(s *mountSettings) {
		s.corsOrigins = origins
	}
}

// WithCacheMaxAge sets the max-age of GET responses.
func WithCacheMaxAge(d time.Duration) MountOption {
	return func(s *mountSettings) {
		s.cacheMaxAge = d
	}
}

// Mount registers the API on r.
func (h *Handlers) Mount(r chi.Router, logger *slog.Logger, opts ...MountOption) {
	var settings mountSettings
	for _, opt := range opts {
		opt(&settings)
	}

	chain := NewMiddlewareChain(RequestIDMiddleware, LoggingMiddleware(logger), RecoveryMiddleware)
	if len(settings.corsOrigins) > 0 {
		chain.Then(CORSMiddleware(settings.corsOrigins, nil, nil))
	}
	chain.Then(CacheMiddleware(settings.cacheMaxAge)).Then(JSONContentType)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return chain.Wrap(next) })
		h.Media.register(r)
		r.Mount("/cache", h.Cache.Routes())
	})
}
