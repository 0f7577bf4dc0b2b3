// Package invalidation maps content-change events to the cache keys that
// must be evicted and reruns dependent regeneration such as the sitemap.
package invalidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/cache"
	"github.com/tendant/simple-media/pkg/simplemedia/cachekey"
)

// Regenerator rebuilds a derived artifact after every invalidation cycle.
type Regenerator interface {
	Name() string
	Regenerate(ctx context.Context) error
}

// Option configures an Engine
type Option func(*Engine)

// WithRegenerator appends a regenerator. Regenerators run in the order added.
func WithRegenerator(r Regenerator) Option {
	return func(e *Engine) {
		e.regenerators = append(e.regenerators, r)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine implements simplemedia.Invalidator.
type Engine struct {
	registry     *cachekey.Registry
	cache        cache.Cache
	regenerators []Regenerator
	logger       *slog.Logger
}

// New creates an engine evicting from c according to registry.
func New(registry *cachekey.Registry, c cache.Cache, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	e := &Engine{registry: registry, cache: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Match returns the rules whose triggers match the event, in registry order.
//
// A literal trigger matches when it equals contentType. A templated trigger
// matches when an identifier is given and the expanded trigger equals
// contentType + "." + identifier. Only when neither matched for a rule are
// its literal triggers tried as prefixes of contentType; that fallback is
// loose on purpose, so "divisions" also hits a "division" trigger.
func (e *Engine) Match(contentType, identifier string) []cachekey.Rule {
	var matched []cachekey.Rule
	for _, rule := range e.registry.Rules() {
		if matchesExact(rule, contentType, identifier) || matchesPrefix(rule, contentType) {
			matched = append(matched, rule)
		}
	}
	return matched
}

func matchesExact(rule cachekey.Rule, contentType, identifier string) bool {
	for _, trigger := range rule.Triggers {
		if trigger.IsTemplated() {
			if identifier != "" && trigger.Expand(identifier) == contentType+"."+identifier {
				return true
			}
			continue
		}
		if trigger.String() == contentType {
			return true
		}
	}
	return false
}

func matchesPrefix(rule cachekey.Rule, contentType string) bool {
	for _, trigger := range rule.Triggers {
		if !trigger.IsTemplated() && strings.HasPrefix(contentType, trigger.String()) {
			return true
		}
	}
	return false
}

// OnContentChanged evicts every matching key and then runs the
// regenerators. An empty identifier means none was supplied; templated keys
// are then skipped. The evicted keys are returned even when some evictions
// or regenerations fail.
func (e *Engine) OnContentChanged(ctx context.Context, contentType, identifier string) ([]string, error) {
	return e.OnContentChanges(ctx, []simplemedia.ContentChange{{ContentType: contentType, Identifier: identifier}})
}

// OnContentChanges evicts the keys of every change, each key at most once,
// then runs the regenerators a single time.
func (e *Engine) OnContentChanges(ctx context.Context, changes []simplemedia.ContentChange) ([]string, error) {
	var (
		evicted []string
		errs    []error
		seen    = make(map[string]struct{})
	)

	for _, ch := range changes {
		keys, err := e.evict(ctx, ch.ContentType, ch.Identifier, seen)
		evicted = append(evicted, keys...)
		errs = append(errs, err...)
	}

	for _, r := range e.regenerators {
		if err := r.Regenerate(ctx); err != nil {
			e.logger.WarnContext(ctx, "regeneration failed", "regenerator", r.Name(), "err", err)
			errs = append(errs, fmt.Errorf("regenerate %s: %w", r.Name(), err))
		}
	}

	return evicted, errors.Join(errs...)
}

func (e *Engine) evict(ctx context.Context, contentType, identifier string, seen map[string]struct{}) ([]string, []error) {
	var (
		evicted []string
		errs    []error
	)
	for _, rule := range e.Match(contentType, identifier) {
		key := rule.Key.String()
		if rule.Key.IsTemplated() {
			if identifier == "" {
				e.logger.InfoContext(ctx, "skipping templated cache key without identifier",
					"key_pattern", key, "content_type", contentType)
				continue
			}
			key = rule.Key.Expand(identifier)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if err := e.cache.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("evict %s: %w", key, err))
			continue
		}
		evicted = append(evicted, key)
	}

	e.logger.DebugContext(ctx, "content changed",
		"content_type", contentType, "identifier", identifier, "evicted", evicted)
	return evicted, errs
}
