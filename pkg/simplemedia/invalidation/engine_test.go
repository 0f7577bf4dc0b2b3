package invalidation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/cache/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/cachekey"
	"github.com/tendant/simple-media/pkg/simplemedia/invalidation"
)

var (
	_ simplemedia.Invalidator      = (*invalidation.Engine)(nil)
	_ simplemedia.BatchInvalidator = (*invalidation.Engine)(nil)
)

type countingRegenerator struct {
	calls int
	err   error
}

func (c *countingRegenerator) Name() string { return "counting" }

func (c *countingRegenerator) Regenerate(ctx context.Context) error {
	c.calls++
	return c.err
}

// recordingCache wraps the memory cache and records deletions.
type recordingCache struct {
	*memory.Cache
	deleted []string
	failOn  string
}

func (r *recordingCache) Delete(ctx context.Context, key string) error {
	if key == r.failOn {
		return errors.New("cache unavailable")
	}
	r.deleted = append(r.deleted, key)
	return r.Cache.Delete(ctx, key)
}

func newEngine(t *testing.T, opts ...invalidation.Option) (*invalidation.Engine, *recordingCache) {
	t.Helper()
	c := &recordingCache{Cache: memory.New()}
	e, err := invalidation.New(cachekey.Default(), c, opts...)
	require.NoError(t, err)
	return e, c
}

func TestEngine_OnContentChanged(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		identifier  string
		contains    []string
		excludes    []string
	}{
		{
			name:        "media flag evicts home",
			contentType: "media",
			identifier:  "home_slider",
			contains:    []string{"home:v1"},
			excludes:    []string{"divisions:index"},
		},
		{
			name:        "division with slug",
			contentType: "division",
			identifier:  "acme-co",
			contains:    []string{"division:acme-co", "divisions:index", "home:v1", "nav:menu"},
			excludes:    []string{"division:{slug}", "product:acme-co"},
		},
		{
			name:        "division without identifier",
			contentType: "division",
			contains:    []string{"divisions:index", "home:v1", "nav:menu"},
			excludes:    []string{"division:{slug}", "division:"},
		},
		{
			name:        "product slug also evicts its division page",
			contentType: "product",
			identifier:  "acme-co",
			contains:    []string{"product:acme-co", "division:acme-co", "products:index"},
		},
		{
			name:        "unknown content type",
			contentType: "newsletter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			evicted, err := e.OnContentChanged(context.Background(), tt.contentType, tt.identifier)
			require.NoError(t, err)
			for _, k := range tt.contains {
				assert.Contains(t, evicted, k)
			}
			for _, k := range tt.excludes {
				assert.NotContains(t, evicted, k)
			}
			if len(tt.contains) == 0 {
				assert.Empty(t, evicted)
			}
		})
	}
}

func TestEngine_TemplatedKeyExpandsExactly(t *testing.T) {
	e, c := newEngine(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "division:acme-co", []byte("x"), time.Hour))
	require.NoError(t, c.Set(ctx, "division:other", []byte("y"), time.Hour))

	evicted, err := e.OnContentChanged(ctx, "division", "acme-co")
	require.NoError(t, err)

	var templated []string
	for _, k := range evicted {
		if len(k) > len("division:") && k[:len("division:")] == "division:" {
			templated = append(templated, k)
		}
	}
	assert.Equal(t, []string{"division:acme-co"}, templated)

	_, err = c.Get(ctx, "division:acme-co")
	assert.Error(t, err)
	_, err = c.Get(ctx, "division:other")
	assert.NoError(t, err)
}

// The prefix fallback is intentionally loose: "divisions" starts with the
// "division" trigger, so it over-invalidates rather than risk a stale page.
func TestEngine_PrefixFallbackIsLoose(t *testing.T) {
	e, _ := newEngine(t)

	evicted, err := e.OnContentChanged(context.Background(), "divisions", "")
	require.NoError(t, err)
	assert.Contains(t, evicted, "divisions:index")
	assert.Contains(t, evicted, "home:v1")

	rules := e.Match("divisions", "acme-co")
	var keys []string
	for _, r := range rules {
		keys = append(keys, r.Key.String())
	}
	assert.NotContains(t, keys, "division:{slug}", "templated triggers never prefix-match")
}

func TestEngine_MatchOrderAndDistinct(t *testing.T) {
	reg := cachekey.MustNewRegistry([]cachekey.RuleSpec{
		{Key: "b", TTLMinutes: 1, Triggers: []string{"media", "medi"}},
		{Key: "a", TTLMinutes: 1, Triggers: []string{"media"}},
		{Key: "c", TTLMinutes: 1, Triggers: []string{"other"}},
	})
	e, err := invalidation.New(reg, memory.New())
	require.NoError(t, err)

	evicted, err := e.OnContentChanged(context.Background(), "media", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, evicted)
}

func TestEngine_RegeneratorsAlwaysRun(t *testing.T) {
	regen := &countingRegenerator{}
	e, _ := newEngine(t, invalidation.WithRegenerator(regen))
	ctx := context.Background()

	_, err := e.OnContentChanged(ctx, "newsletter", "")
	require.NoError(t, err)
	_, err = e.OnContentChanged(ctx, "division", "")
	require.NoError(t, err)
	assert.Equal(t, 2, regen.calls)
}

func TestEngine_ErrorsAreJoined(t *testing.T) {
	regen := &countingRegenerator{err: errors.New("disk full")}
	c := &recordingCache{Cache: memory.New(), failOn: "divisions:index"}
	e, err := invalidation.New(cachekey.Default(), c, invalidation.WithRegenerator(regen))
	require.NoError(t, err)

	evicted, err := e.OnContentChanged(context.Background(), "division", "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "evict divisions:index")
	assert.ErrorContains(t, err, "regenerate counting: disk full")
	assert.Contains(t, evicted, "home:v1")
	assert.NotContains(t, evicted, "divisions:index")
	assert.Equal(t, 1, regen.calls)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := invalidation.New(nil, memory.New())
	assert.Error(t, err)
	_, err = invalidation.New(cachekey.Default(), nil)
	assert.Error(t, err)
}

func TestEngine_OnContentChangesRegeneratesOnce(t *testing.T) {
	regen := &countingRegenerator{}
	e, c := newEngine(t, invalidation.WithRegenerator(regen))

	evicted, err := e.OnContentChanges(context.Background(), []simplemedia.ContentChange{
		{ContentType: "media"},
		{ContentType: "media", Identifier: "home_slider"},
		{ContentType: "media", Identifier: "featured"},
		{ContentType: "division"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, regen.calls)
	assert.Equal(t, []string{"home:v1", "nav:menu", "divisions:index"}, evicted)
	assert.Equal(t, evicted, c.deleted)
}

func TestEngine_OnContentChangesEmpty(t *testing.T) {
	regen := &countingRegenerator{}
	e, _ := newEngine(t, invalidation.WithRegenerator(regen))

	evicted, err := e.OnContentChanges(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.Equal(t, 1, regen.calls)
}
