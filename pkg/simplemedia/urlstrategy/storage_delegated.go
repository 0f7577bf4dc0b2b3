package urlstrategy

import (
	"context"
	"fmt"
)

// BlobStore interface for URL generation (to avoid circular imports)
type BlobStore interface {
	URLFor(ctx context.Context, objectKey string) (string, error)
}

// StorageDelegatedStrategy delegates URL generation to the storage backend,
// e.g. presigned S3 URLs or the fallback store's public link.
type StorageDelegatedStrategy struct {
	Store BlobStore
}

// NewStorageDelegatedStrategy creates a new storage-delegated URL strategy
func NewStorageDelegatedStrategy(store BlobStore) *StorageDelegatedStrategy {
	return &StorageDelegatedStrategy{Store: store}
}

func (s *StorageDelegatedStrategy) PublicURL(ctx context.Context, objectKey string) (string, error) {
	if s.Store == nil {
		return "", fmt.Errorf("storage backend not configured")
	}
	if err := requireKey(objectKey); err != nil {
		return "", err
	}
	return s.Store.URLFor(ctx, objectKey)
}
