package simplemedia

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the media record manager
type Service interface {
	// Upload operations
	UploadImage(ctx context.Context, req UploadImageRequest) (*MediaAsset, error)
	UploadVideo(ctx context.Context, req UploadVideoRequest) (*MediaAsset, error)

	// Record operations
	GetMedia(ctx context.Context, id uuid.UUID) (*MediaAsset, error)
	ListMedia(ctx context.Context, owner Owner) ([]*MediaAsset, error)
	UpdateMedia(ctx context.Context, req UpdateMediaRequest) (*MediaAsset, error)

	// DeleteMedia removes every derivable blob and then the record. Deleting
	// an already deleted asset succeeds.
	DeleteMedia(ctx context.Context, asset *MediaAsset) error
	DeleteMediaByID(ctx context.Context, id uuid.UUID) error

	// MediaURLs resolves public URLs for the asset and its derivatives.
	MediaURLs(ctx context.Context, asset *MediaAsset) (*MediaURLs, error)
}
