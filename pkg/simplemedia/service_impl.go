package simplemedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/tendant/simple-media/pkg/simplemedia/mediakey"
)

// service implements the Service interface
type service struct {
	repository  Repository
	blobStore   BlobStore
	validator   Validator
	generator   Generator
	thumbnails  ThumbnailRenderer
	invalidator Invalidator
	owners      *OwnerRegistry
	urls        URLStrategy
	namer       mediakey.NameGenerator
	logger      *slog.Logger
	clock       func() time.Time
	readLimit   int64
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store that receives primaries and derivatives
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithValidator sets the upload validator
func WithValidator(v Validator) Option {
	return func(s *service) {
		s.validator = v
	}
}

// WithGenerator sets the derivative generator
func WithGenerator(g Generator) Option {
	return func(s *service) {
		s.generator = g
	}
}

// WithThumbnailRenderer sets the renderer for video placeholder stills
func WithThumbnailRenderer(r ThumbnailRenderer) Option {
	return func(s *service) {
		s.thumbnails = r
	}
}

// WithInvalidator sets the receiver of content-change events
func WithInvalidator(inv Invalidator) Option {
	return func(s *service) {
		s.invalidator = inv
	}
}

// WithOwnerRegistry overrides the owner type table
func WithOwnerRegistry(r *OwnerRegistry) Option {
	return func(s *service) {
		s.owners = r
	}
}

// WithURLStrategy sets how storage keys map to public URLs
func WithURLStrategy(u URLStrategy) Option {
	return func(s *service) {
		s.urls = u
	}
}

// WithNameGenerator overrides primary file naming for video uploads
func WithNameGenerator(n mediakey.NameGenerator) Option {
	return func(s *service) {
		s.namer = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock sets the wall clock used for owner directories and timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *service) {
		s.clock = clock
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		namer:     mediakey.NewHashedNameGenerator(),
		logger:    slog.Default(),
		clock:     time.Now,
		readLimit: MaxVideoBytes + 1,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if s.generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if s.invalidator == nil {
		s.invalidator = NewNoopInvalidator()
	}
	if s.owners == nil {
		s.owners = DefaultOwnerRegistry(s.repository)
	}
	if s.urls == nil {
		if resolver, ok := s.blobStore.(URLResolver); ok {
			s.urls = resolverStrategy{resolver}
		}
	}

	return s, nil
}

// Upload operations

func (s *service) UploadImage(ctx context.Context, req UploadImageRequest) (*MediaAsset, error) {
	owner, err := s.owners.Handler(req.Owner.Type)
	if err != nil {
		return nil, err
	}
	use := req.IntendedUse
	if use == "" {
		use = UseGeneral
	}

	data, err := s.readAll(req.Reader)
	if err != nil {
		return nil, &MediaError{Op: "read", Err: err}
	}
	file := File{Filename: req.Filename, Data: data}

	info, err := s.validator.ValidateImage(file, use)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	dir := mediakey.OwnerDirectory(req.Owner.Type.Slug(), now)
	result, err := s.generator.Generate(ctx, &SourceImage{
		Filename:   req.Filename,
		Data:       data,
		Info:       info,
		UploadedAt: now,
	}, dir)
	if err != nil {
		return nil, &MediaError{Op: "generate", Err: err}
	}

	flags := slices.Clone(req.Flags)
	if use == UseSlider {
		flags = append(flags, FlagHomeSlider)
	}

	width, height := info.Width, info.Height
	asset := &MediaAsset{
		ID:          uuid.New(),
		OwnerType:   req.Owner.Type,
		OwnerID:     req.Owner.ID,
		Kind:        MediaKindImage,
		Source:      MediaSourceUpload,
		PrimaryPath: result.PrimaryPath,
		Caption:     req.Caption,
		MimeType:    info.MimeType,
		Width:       &width,
		Height:      &height,
		ByteSize:    info.ByteSize,
		Flags:       NormalizeFlags(flags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persist(ctx, owner, asset); err != nil {
		s.deleteKeys(ctx, result.Paths())
		return nil, err
	}

	s.notify(ctx, asset, nil)
	return asset, nil
}

func (s *service) UploadVideo(ctx context.Context, req UploadVideoRequest) (*MediaAsset, error) {
	owner, err := s.owners.Handler(req.Owner.Type)
	if err != nil {
		return nil, err
	}
	if req.URL != "" {
		return s.embedVideo(ctx, owner, req)
	}
	if req.Reader == nil {
		return nil, Reject(RejectEmpty, "video file or URL is required")
	}
	if s.thumbnails == nil {
		return nil, &MediaError{Op: "upload_video", Err: fmt.Errorf("thumbnail renderer not configured")}
	}

	data, err := s.readAll(req.Reader)
	if err != nil {
		return nil, &MediaError{Op: "read", Err: err}
	}
	info, err := s.validator.ValidateVideoFile(File{Filename: req.Filename, Data: data})
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	dir := mediakey.OwnerDirectory(req.Owner.Type.Slug(), now)
	_, base, _ := mediakey.Split(s.namer.GenerateName(req.Filename, now))
	primary := dir + "/" + base + ".mp4"

	if err := s.blobStore.UploadWithParams(ctx, bytes.NewReader(data), UploadParams{
		ObjectKey: primary,
		MimeType:  info.MimeType,
	}); err != nil {
		return nil, &MediaError{Op: "store", Err: err}
	}

	label := req.Caption
	if label == "" {
		label = "Video"
	}
	thumbPath := mediakey.ThumbnailPath(primary)
	thumb, err := s.thumbnails.RenderThumbnail(label)
	if err == nil {
		err = s.blobStore.UploadWithParams(ctx, bytes.NewReader(thumb), UploadParams{
			ObjectKey: thumbPath,
			MimeType:  "image/jpeg",
		})
	}
	if err != nil {
		s.deleteKeys(ctx, []string{primary, thumbPath})
		return nil, &MediaError{Op: "thumbnail", Err: fmt.Errorf("%w: %v", ErrDerivativeGeneration, err)}
	}

	asset := &MediaAsset{
		ID:          uuid.New(),
		OwnerType:   req.Owner.Type,
		OwnerID:     req.Owner.ID,
		Kind:        MediaKindVideo,
		Source:      MediaSourceUpload,
		PrimaryPath: primary,
		Caption:     req.Caption,
		MimeType:    info.MimeType,
		ByteSize:    info.ByteSize,
		Flags:       NormalizeFlags(req.Flags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.persist(ctx, owner, asset); err != nil {
		s.deleteKeys(ctx, []string{primary, thumbPath})
		return nil, err
	}

	s.notify(ctx, asset, nil)
	return asset, nil
}

func (s *service) embedVideo(ctx context.Context, owner OwnerHandler, req UploadVideoRequest) (*MediaAsset, error) {
	u, err := s.validator.ValidateVideoURL(req.URL)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	asset := &MediaAsset{
		ID:          uuid.New(),
		OwnerType:   req.Owner.Type,
		OwnerID:     req.Owner.ID,
		Kind:        MediaKindVideo,
		Source:      MediaSourceEmbed,
		PrimaryPath: u.String(),
		Caption:     req.Caption,
		Flags:       NormalizeFlags(req.Flags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.persist(ctx, owner, asset); err != nil {
		return nil, err
	}

	s.notify(ctx, asset, nil)
	return asset, nil
}

// persist assigns the next display order and stores the record. The
// read-max-then-insert sequence is not atomic; concurrent uploads to the same
// owner may receive the same order.
func (s *service) persist(ctx context.Context, owner OwnerHandler, asset *MediaAsset) error {
	highest, err := owner.MaxDisplayOrder(ctx, asset.OwnerID)
	if err != nil {
		return &MediaError{MediaID: asset.ID, Op: "display_order", Err: err}
	}
	asset.DisplayOrder = highest + 1

	if err := s.repository.CreateMedia(ctx, asset); err != nil {
		return &MediaError{MediaID: asset.ID, Op: "create", Err: err}
	}
	return nil
}

// Record operations

func (s *service) GetMedia(ctx context.Context, id uuid.UUID) (*MediaAsset, error) {
	asset, err := s.repository.GetMedia(ctx, id)
	if err != nil {
		return nil, &MediaError{MediaID: id, Op: "get", Err: err}
	}
	return asset, nil
}

func (s *service) ListMedia(ctx context.Context, owner Owner) ([]*MediaAsset, error) {
	if _, err := s.owners.Handler(owner.Type); err != nil {
		return nil, err
	}
	return s.repository.ListMediaByOwner(ctx, owner)
}

func (s *service) UpdateMedia(ctx context.Context, req UpdateMediaRequest) (*MediaAsset, error) {
	asset, err := s.repository.GetMedia(ctx, req.ID)
	if err != nil {
		return nil, &MediaError{MediaID: req.ID, Op: "update", Err: err}
	}

	previous := asset.Flags
	if req.Caption != nil {
		asset.Caption = *req.Caption
	}
	if req.Flags != nil {
		asset.Flags = NormalizeFlags(*req.Flags)
	}
	if req.DisplayOrder != nil {
		asset.DisplayOrder = *req.DisplayOrder
	}
	asset.UpdatedAt = s.clock().UTC()

	if err := s.repository.UpdateMedia(ctx, asset); err != nil {
		return nil, &MediaError{MediaID: asset.ID, Op: "update", Err: err}
	}

	s.notify(ctx, asset, previous)
	return asset, nil
}

func (s *service) DeleteMedia(ctx context.Context, asset *MediaAsset) error {
	if asset == nil {
		return &MediaError{Op: "delete", Err: ErrMediaNotFound}
	}

	if asset.IsStored() && asset.PrimaryPath != "" {
		s.deleteKeys(ctx, mediakey.CandidatePaths(asset.PrimaryPath, asset.Kind == MediaKindVideo))
	}

	if err := s.repository.DeleteMedia(ctx, asset.ID); err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			s.logger.DebugContext(ctx, "media record already deleted", "media_id", asset.ID)
			return nil
		}
		return &MediaError{MediaID: asset.ID, Op: "delete", Err: err}
	}

	s.notify(ctx, asset, nil)
	return nil
}

func (s *service) DeleteMediaByID(ctx context.Context, id uuid.UUID) error {
	asset, err := s.repository.GetMedia(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			return nil
		}
		return &MediaError{MediaID: id, Op: "delete", Err: err}
	}
	return s.DeleteMedia(ctx, asset)
}

func (s *service) MediaURLs(ctx context.Context, asset *MediaAsset) (*MediaURLs, error) {
	if !asset.IsStored() {
		return &MediaURLs{Primary: asset.PrimaryPath}, nil
	}
	if s.urls == nil {
		return nil, fmt.Errorf("no URL strategy configured")
	}

	primary, err := s.urls.PublicURL(ctx, asset.PrimaryPath)
	if err != nil {
		return nil, err
	}
	out := &MediaURLs{Primary: primary}

	if asset.Kind == MediaKindVideo {
		if out.Thumbnail, err = s.urls.PublicURL(ctx, mediakey.ThumbnailPath(asset.PrimaryPath)); err != nil {
			return nil, err
		}
		return out, nil
	}

	if asset.Width != nil {
		for _, w := range mediakey.WidthsFor(*asset.Width) {
			u, err := s.urls.PublicURL(ctx, mediakey.VariantPath(asset.PrimaryPath, w))
			if err != nil {
				return nil, err
			}
			if out.Variants == nil {
				out.Variants = make(map[int]string)
			}
			out.Variants[w] = u
		}
	}

	// The alternate encoding is optional, so only link it when it was written.
	if mediakey.HasAlternate(asset.PrimaryPath) {
		alt := mediakey.AlternatePath(asset.PrimaryPath)
		if _, err := s.blobStore.GetObjectMeta(ctx, alt); err == nil {
			if out.Alternate, err = s.urls.PublicURL(ctx, alt); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Helpers

func (s *service) readAll(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, Reject(RejectEmpty, "no file supplied")
	}
	return io.ReadAll(io.LimitReader(r, s.readLimit))
}

// deleteKeys removes keys best-effort. Missing objects are ignored and other
// failures are logged.
func (s *service) deleteKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobStore.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			s.logger.WarnContext(ctx, "failed to delete media object", "key", key, "err", err)
		}
	}
}

// notify reports a media mutation: the generic media event, one event per
// flag (current and previous) and the owner type event. A BatchInvalidator
// receives them as one cycle.
func (s *service) notify(ctx context.Context, asset *MediaAsset, previousFlags []Flag) {
	changes := []ContentChange{{ContentType: ContentTypeMedia}}
	for _, flag := range NormalizeFlags(append(slices.Clone(asset.Flags), previousFlags...)) {
		changes = append(changes, ContentChange{ContentType: ContentTypeMedia, Identifier: string(flag)})
	}
	changes = append(changes, ContentChange{ContentType: asset.OwnerType.Slug()})

	if batch, ok := s.invalidator.(BatchInvalidator); ok {
		keys, err := batch.OnContentChanges(ctx, changes)
		if err != nil {
			s.logger.WarnContext(ctx, "cache invalidation failed", "media_id", asset.ID, "err", err)
		}
		if len(keys) > 0 {
			s.logger.DebugContext(ctx, "cache keys evicted", "media_id", asset.ID, "keys", keys)
		}
		return
	}

	for _, ch := range changes {
		keys, err := s.invalidator.OnContentChanged(ctx, ch.ContentType, ch.Identifier)
		if err != nil {
			s.logger.WarnContext(ctx, "cache invalidation failed",
				"content_type", ch.ContentType, "identifier", ch.Identifier, "media_id", asset.ID, "err", err)
			continue
		}
		if len(keys) > 0 {
			s.logger.DebugContext(ctx, "cache keys evicted", "content_type", ch.ContentType, "identifier", ch.Identifier, "keys", keys)
		}
	}
}

type resolverStrategy struct {
	resolver URLResolver
}

func (r resolverStrategy) PublicURL(ctx context.Context, objectKey string) (string, error) {
	return r.resolver.URLFor(ctx, objectKey)
}
