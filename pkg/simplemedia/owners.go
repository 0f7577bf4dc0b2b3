package simplemedia

import (
	"context"
	"fmt"
	"strings"
)

// OwnerType tags the kind of business entity a media asset belongs to.
type OwnerType string

// Owner type constants (typed).
const (
	OwnerDivision   OwnerType = "Division"
	OwnerProduct    OwnerType = "Product"
	OwnerTechnology OwnerType = "Technology"
	OwnerMachine    OwnerType = "Machine"
	OwnerMilestone  OwnerType = "Milestone"
)

// KnownOwnerTypes lists the owner types the site ships with.
var KnownOwnerTypes = []OwnerType{
	OwnerDivision,
	OwnerProduct,
	OwnerTechnology,
	OwnerMachine,
	OwnerMilestone,
}

// ParseOwnerType resolves a case-insensitive tag to a known OwnerType.
func ParseOwnerType(s string) (OwnerType, error) {
	s = strings.TrimSpace(s)
	for _, t := range KnownOwnerTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOwnerType, s)
}

// Slug is the lower-cased tag used for storage directories and content-change
// events.
func (t OwnerType) Slug() string {
	return strings.ToLower(string(t))
}

// OwnerHandler is the set of operations the media pipeline needs from an
// owner entity.
type OwnerHandler interface {
	// MaxDisplayOrder returns the highest display order among the owner's
	// media, or 0 when the owner has none.
	MaxDisplayOrder(ctx context.Context, ownerID int64) (int, error)

	// DisplayName returns a human readable name used for labels.
	DisplayName(ctx context.Context, ownerID int64) (string, error)
}

// OwnerRegistry maps owner type tags to their handlers. It replaces dynamic
// resolution of owner classes with an explicit lookup table.
type OwnerRegistry struct {
	handlers map[OwnerType]OwnerHandler
}

// NewOwnerRegistry builds a registry from the given table. The map is copied.
func NewOwnerRegistry(handlers map[OwnerType]OwnerHandler) *OwnerRegistry {
	table := make(map[OwnerType]OwnerHandler, len(handlers))
	for t, h := range handlers {
		table[t] = h
	}
	return &OwnerRegistry{handlers: table}
}

// DefaultOwnerRegistry registers every known owner type backed by the media
// repository.
func DefaultOwnerRegistry(repo Repository) *OwnerRegistry {
	table := make(map[OwnerType]OwnerHandler, len(KnownOwnerTypes))
	for _, t := range KnownOwnerTypes {
		table[t] = NewRepositoryOwnerHandler(repo, t)
	}
	return &OwnerRegistry{handlers: table}
}

// Handler returns the handler for an owner type.
func (r *OwnerRegistry) Handler(t OwnerType) (OwnerHandler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOwnerType, t)
	}
	return h, nil
}

// Types returns the registered owner types.
func (r *OwnerRegistry) Types() []OwnerType {
	out := make([]OwnerType, 0, len(r.handlers))
	for _, t := range KnownOwnerTypes {
		if _, ok := r.handlers[t]; ok {
			out = append(out, t)
		}
	}
	for t := range r.handlers {
		if !isKnownOwnerType(t) {
			out = append(out, t)
		}
	}
	return out
}

func isKnownOwnerType(t OwnerType) bool {
	for _, k := range KnownOwnerTypes {
		if k == t {
			return true
		}
	}
	return false
}

// RepositoryOwnerHandler answers owner queries from the media repository.
type RepositoryOwnerHandler struct {
	repo      Repository
	ownerType OwnerType
}

// NewRepositoryOwnerHandler creates a handler for one owner type.
func NewRepositoryOwnerHandler(repo Repository, ownerType OwnerType) *RepositoryOwnerHandler {
	return &RepositoryOwnerHandler{repo: repo, ownerType: ownerType}
}

func (h *RepositoryOwnerHandler) MaxDisplayOrder(ctx context.Context, ownerID int64) (int, error) {
	return h.repo.MaxDisplayOrder(ctx, Owner{Type: h.ownerType, ID: ownerID})
}

func (h *RepositoryOwnerHandler) DisplayName(ctx context.Context, ownerID int64) (string, error) {
	return fmt.Sprintf("%s #%d", h.ownerType, ownerID), nil
}
