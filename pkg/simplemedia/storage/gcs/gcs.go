package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Config options for the Google Cloud Storage backend
type Config struct {
	Bucket          string
	CredentialsFile string // optional service account JSON
	EmulatorHost    string // e.g. http://localhost:4443, disables authentication
	CDNDomain       string // optional, URLFor returns https://{CDNDomain}/{key}
	PublicBaseURL   string // optional, URLFor returns {PublicBaseURL}/{bucket}/{key}
	WriteTimeout    time.Duration
}

// Backend is a GCS implementation of the simplemedia.BlobStore interface
type Backend struct {
	client *storage.Client
	config Config
}

// New creates a GCS backend and its client
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	switch {
	case config.EmulatorHost != "":
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(strings.TrimRight(config.EmulatorHost, "/")+"/storage/v1/"),
		)
	case config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile), option.WithScopes(storage.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewWithClient(client, config), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *storage.Client, config Config) *Backend {
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 2 * time.Minute
	}
	config.PublicBaseURL = strings.TrimRight(config.PublicBaseURL, "/")
	return &Backend{client: client, config: config}
}

// Close releases the client
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) object(key string) *storage.ObjectHandle {
	return b.client.Bucket(b.config.Bucket).Object(key)
}

// GetObjectMeta retrieves metadata for an object
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simplemedia.ObjectMeta, error) {
	attrs, err := b.object(objectKey).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, simplemedia.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object attrs: %w", err)
	}

	metadata := make(map[string]string, len(attrs.Metadata)+1)
	for k, v := range attrs.Metadata {
		metadata[k] = v
	}
	metadata["content_type"] = attrs.ContentType

	return &simplemedia.ObjectMeta{
		Key:         objectKey,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		UpdatedAt:   attrs.Updated,
		ETag:        attrs.Etag,
		Metadata:    metadata,
	}, nil
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	return b.UploadWithParams(ctx, reader, simplemedia.UploadParams{ObjectKey: objectKey})
}

// UploadWithParams uploads content with additional parameters
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params simplemedia.UploadParams) error {
	ctx, cancel := context.WithTimeout(ctx, b.config.WriteTimeout)
	defer cancel()

	w := b.object(params.ObjectKey).NewWriter(ctx)
	w.ContentType = params.MimeType
	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	r, err := b.object(objectKey).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, simplemedia.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return r, nil
}

// Delete deletes content. Missing objects are ignored.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	if err := b.object(objectKey).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", objectKey, b.config.Bucket, err)
	}
	return nil
}

// URLFor returns the public URL of an object
func (b *Backend) URLFor(ctx context.Context, objectKey string) (string, error) {
	return PublicURL(b.config, objectKey), nil
}

// PublicURL builds the URL under which an object is publicly served.
func PublicURL(config Config, objectKey string) string {
	key := strings.TrimLeft(strings.TrimSpace(objectKey), "/")
	switch {
	case config.CDNDomain != "":
		return fmt.Sprintf("https://%s/%s", config.CDNDomain, key)
	case config.PublicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(config.PublicBaseURL, "/"), config.Bucket, key)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", config.Bucket, key)
	}
}
