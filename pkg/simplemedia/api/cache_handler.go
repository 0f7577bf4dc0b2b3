package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/cachekey"
)

// CacheHandler exposes the invalidation engine to content editors.
type CacheHandler struct {
	invalidator simplemedia.Invalidator
	registry    *cachekey.Registry
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewCacheHandler creates a cache handler. registry may be nil, which
// disables the rules listing.
func NewCacheHandler(inv simplemedia.Invalidator, registry *cachekey.Registry, logger *slog.Logger) *CacheHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheHandler{
		invalidator: inv,
		registry:    registry,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Routes returns the router for cache endpoints
func (h *CacheHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/invalidate", h.Invalidate)
	r.Get("/rules", h.ListRules)
	return r
}

// InvalidateRequest reports a content change.
type InvalidateRequest struct {
	ContentType string `json:"content_type" validate:"required,max=64"`
	Identifier  string `json:"identifier,omitempty" validate:"max=255"`
}

// InvalidateResponse lists the evicted cache keys.
type InvalidateResponse struct {
	Evicted []string `json:"evicted"`
	Errors  string   `json:"errors,omitempty"`
}

// RuleResponse describes one cache rule.
type RuleResponse struct {
	Key        string   `json:"key"`
	TTLMinutes int      `json:"ttl_minutes"`
	Triggers   []string `json:"triggers"`
}

// Invalidate evicts the keys bound to a content change. Partial eviction
// failures still return the keys that were evicted.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "request body cannot be empty")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, err)
		return
	}

	keys, err := h.invalidator.OnContentChanged(r.Context(), req.ContentType, req.Identifier)
	resp := InvalidateResponse{Evicted: keys}
	if resp.Evicted == nil {
		resp.Evicted = []string{}
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "cache invalidation incomplete",
			"content_type", req.ContentType, "identifier", req.Identifier, "err", err)
		resp.Errors = err.Error()
		render.Status(r, http.StatusBadGateway)
	}
	render.JSON(w, r, resp)
}

// ListRules returns the configured cache rules
func (h *CacheHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "no cache rules configured")
		return
	}
	rules := h.registry.Rules()
	resp := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		rr := RuleResponse{
			Key:        rule.Key.String(),
			TTLMinutes: int(rule.TTL.Minutes()),
		}
		for _, t := range rule.Triggers {
			rr.Triggers = append(rr.Triggers, t.String())
		}
		resp = append(resp, rr)
	}
	render.JSON(w, r, resp)
}
