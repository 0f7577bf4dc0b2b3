package simplemedia

import (
	"context"
	"io"
	"net/url"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// URLResolver is implemented by blob stores that can address their objects
// publicly.
type URLResolver interface {
	URLFor(ctx context.Context, objectKey string) (string, error)
}

// Repository defines the interface for media record persistence
type Repository interface {
	CreateMedia(ctx context.Context, media *MediaAsset) error
	GetMedia(ctx context.Context, id uuid.UUID) (*MediaAsset, error)
	UpdateMedia(ctx context.Context, media *MediaAsset) error
	DeleteMedia(ctx context.Context, id uuid.UUID) error

	// ListMediaByOwner returns all assets for the owner ordered by display
	// order, ties broken by insertion order.
	ListMediaByOwner(ctx context.Context, owner Owner) ([]*MediaAsset, error)

	// MaxDisplayOrder returns the highest display order for the owner, or 0.
	MaxDisplayOrder(ctx context.Context, owner Owner) (int, error)
}

// Validator checks uploads against the size, format and dimension policies.
// Implementations must not have side effects.
type Validator interface {
	ValidateImage(file File, use IntendedUse) (*ImageInfo, error)
	ValidateVideoFile(file File) (*VideoInfo, error)
	ValidateVideoURL(raw string) (*url.URL, error)
}

// Generator writes the primary image and its derivatives under ownerDir.
type Generator interface {
	Generate(ctx context.Context, src *SourceImage, ownerDir string) (*GenerateResult, error)
}

// ThumbnailRenderer renders the placeholder still used for uploaded videos.
type ThumbnailRenderer interface {
	// RenderThumbnail returns JPEG bytes.
	RenderThumbnail(label string) ([]byte, error)
}

// Invalidator receives content-change events and returns the evicted keys.
// An empty identifier means none was supplied.
type Invalidator interface {
	OnContentChanged(ctx context.Context, contentType, identifier string) ([]string, error)
}

// ContentChange is one content-change event. An empty Identifier means none
// was supplied.
type ContentChange struct {
	ContentType string
	Identifier  string
}

// BatchInvalidator is implemented by invalidators that can process the
// events of one mutation as a single cycle, running regeneration once.
type BatchInvalidator interface {
	OnContentChanges(ctx context.Context, changes []ContentChange) ([]string, error)
}

// URLStrategy maps storage keys to public URLs.
type URLStrategy interface {
	PublicURL(ctx context.Context, objectKey string) (string, error)
}
