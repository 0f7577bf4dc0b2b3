package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint        string // host:port, no scheme
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string        // default us-east-1; a fixed region avoids location lookups
	PresignDuration time.Duration // used by URLFor when the bucket is private
	PublicBucket    bool          // URLFor returns direct bucket URLs instead of presigned ones

	CreateBucketIfNotExist bool
}

// Backend is a MinIO implementation of the simplemedia.BlobStore interface
type Backend struct {
	client *minio.Client
	config Config
}

// New creates a new MinIO storage backend
func New(config Config) (*Backend, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.PresignDuration == 0 {
		config.PresignDuration = time.Hour
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	backend := &Backend{client: client, config: config}
	if config.CreateBucketIfNotExist {
		if err := backend.ensureBucket(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
		}
	}
	return backend, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (b *Backend) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.config.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

// GetObjectMeta retrieves metadata for an object
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simplemedia.ObjectMeta, error) {
	info, err := b.client.StatObject(ctx, b.config.Bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, simplemedia.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	metadata := make(map[string]string, len(info.UserMetadata)+1)
	for k, v := range info.UserMetadata {
		metadata[k] = v
	}
	metadata["content_type"] = info.ContentType

	return &simplemedia.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size,
		ContentType: info.ContentType,
		UpdatedAt:   info.LastModified,
		ETag:        info.ETag,
		Metadata:    metadata,
	}, nil
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	return b.UploadWithParams(ctx, reader, simplemedia.UploadParams{ObjectKey: objectKey})
}

// UploadWithParams uploads content with additional parameters
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params simplemedia.UploadParams) error {
	opts := minio.PutObjectOptions{ContentType: params.MimeType}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	// Size -1 streams with multipart upload.
	if _, err := b.client.PutObject(ctx, b.config.Bucket, params.ObjectKey, reader, -1, opts); err != nil {
		return fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.config.Bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download from MinIO: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, simplemedia.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to download from MinIO: %w", err)
	}
	return obj, nil
}

// Delete deletes content. Missing keys are ignored.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	err := b.client.RemoveObject(ctx, b.config.Bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return nil
}

// URLFor returns a direct URL for public buckets or a presigned GET URL.
func (b *Backend) URLFor(ctx context.Context, objectKey string) (string, error) {
	if b.config.PublicBucket {
		endpoint := strings.TrimSuffix(b.client.EndpointURL().String(), "/")
		return fmt.Sprintf("%s/%s/%s", endpoint, b.config.Bucket, strings.TrimPrefix(objectKey, "/")), nil
	}

	u, err := b.client.PresignedGetObject(ctx, b.config.Bucket, objectKey, b.config.PresignDuration, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}
