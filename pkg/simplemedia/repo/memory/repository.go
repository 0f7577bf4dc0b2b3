package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Repository implements simplemedia.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	media   map[uuid.UUID]*record
	byOwner map[simplemedia.Owner][]uuid.UUID // insertion order
	seq     uint64
}

type record struct {
	asset simplemedia.MediaAsset
	seq   uint64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		media:   make(map[uuid.UUID]*record),
		byOwner: make(map[simplemedia.Owner][]uuid.UUID),
	}
}

func clone(m *simplemedia.MediaAsset) *simplemedia.MediaAsset {
	c := *m
	c.Flags = slices.Clone(m.Flags)
	if m.Width != nil {
		w := *m.Width
		c.Width = &w
	}
	if m.Height != nil {
		h := *m.Height
		c.Height = &h
	}
	return &c
}

func (r *Repository) CreateMedia(ctx context.Context, media *simplemedia.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if media.ID == uuid.Nil {
		media.ID = uuid.New()
	}
	r.seq++
	r.media[media.ID] = &record{asset: *clone(media), seq: r.seq}
	owner := media.Owner()
	r.byOwner[owner] = append(r.byOwner[owner], media.ID)
	return nil
}

func (r *Repository) GetMedia(ctx context.Context, id uuid.UUID) (*simplemedia.MediaAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.media[id]
	if !exists {
		return nil, simplemedia.ErrMediaNotFound
	}
	return clone(&rec.asset), nil
}

func (r *Repository) UpdateMedia(ctx context.Context, media *simplemedia.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.media[media.ID]
	if !exists {
		return simplemedia.ErrMediaNotFound
	}
	// Ownership is immutable.
	updated := clone(media)
	updated.OwnerType = rec.asset.OwnerType
	updated.OwnerID = rec.asset.OwnerID
	rec.asset = *updated
	return nil
}

func (r *Repository) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.media[id]
	if !exists {
		return simplemedia.ErrMediaNotFound
	}
	delete(r.media, id)

	owner := rec.asset.Owner()
	ids := r.byOwner[owner]
	if i := slices.Index(ids, id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(r.byOwner, owner)
	} else {
		r.byOwner[owner] = ids
	}
	return nil
}

func (r *Repository) ListMediaByOwner(ctx context.Context, owner simplemedia.Owner) ([]*simplemedia.MediaAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]*record, 0, len(r.byOwner[owner]))
	for _, id := range r.byOwner[owner] {
		recs = append(recs, r.media[id])
	}
	slices.SortStableFunc(recs, func(a, b *record) int {
		if a.asset.DisplayOrder != b.asset.DisplayOrder {
			return a.asset.DisplayOrder - b.asset.DisplayOrder
		}
		return int(a.seq) - int(b.seq)
	})

	result := make([]*simplemedia.MediaAsset, 0, len(recs))
	for _, rec := range recs {
		result = append(result, clone(&rec.asset))
	}
	return result, nil
}

func (r *Repository) MaxDisplayOrder(ctx context.Context, owner simplemedia.Owner) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	highest := 0
	for _, id := range r.byOwner[owner] {
		if o := r.media[id].asset.DisplayOrder; o > highest {
			highest = o
		}
	}
	return highest, nil
}
