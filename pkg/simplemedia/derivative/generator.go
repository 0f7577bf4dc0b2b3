// Package derivative produces the primary image and its resized variants and
// alternate encoding, and renders placeholder stills for videos.
package derivative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/derivative/webp"
	"github.com/tendant/simple-media/pkg/simplemedia/mediakey"
)

const (
	defaultJPEGQuality = 85
	defaultWebPQuality = 80
)

// Option configures a Generator
type Option func(*Generator)

// WithNameGenerator overrides the primary file naming strategy
func WithNameGenerator(n mediakey.NameGenerator) Option {
	return func(g *Generator) {
		g.namer = n
	}
}

// WithEncoder registers an encoder for a file extension (without dot)
func WithEncoder(ext string, enc Encoder) Option {
	return func(g *Generator) {
		g.encoders[strings.ToLower(ext)] = enc
	}
}

// WithAlternateEncoder sets the WebP encoder used for the alternate copy and
// for webp primaries. A nil encoder is ignored.
func WithAlternateEncoder(enc Encoder) Option {
	return func(g *Generator) {
		if enc == nil {
			return
		}
		g.alternate = enc
		g.encoders[mediakey.AlternateExt] = enc
	}
}

// WithoutAlternate stops writing the alternate copy. WebP primaries are
// still encoded.
func WithoutAlternate() Option {
	return func(g *Generator) {
		g.alternate = nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// Generator implements simplemedia.Generator on top of a blob store.
type Generator struct {
	store     simplemedia.BlobStore
	namer     mediakey.NameGenerator
	encoders  map[string]Encoder
	alternate Encoder
	logger    *slog.Logger
}

// New creates a Generator writing to store. JPEG, PNG and WebP encoders are
// registered by default, and the WebP one also writes the alternate copy.
func New(store simplemedia.BlobStore, opts ...Option) *Generator {
	alt := webp.New(defaultWebPQuality)
	g := &Generator{
		store: store,
		namer: mediakey.NewHashedNameGenerator(),
		encoders: map[string]Encoder{
			"jpg":                 JPEGEncoder(defaultJPEGQuality),
			"jpeg":                JPEGEncoder(defaultJPEGQuality),
			"png":                 PNGEncoder(),
			mediakey.AlternateExt: alt,
		},
		alternate: alt,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate stores the normalized primary at {ownerDir}/{name}, a scaled copy
// for every variant width narrower than the source, and the alternate
// encoding when one applies. A failed variant removes everything written so
// far; a failed alternate is only logged.
func (g *Generator) Generate(ctx context.Context, src *simplemedia.SourceImage, ownerDir string) (*simplemedia.GenerateResult, error) {
	img, format, err := g.source(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", simplemedia.ErrDerivativeGeneration, err)
	}

	name := g.namer.GenerateName(src.Filename, src.UploadedAt)
	ext := mediakey.Ext(name)
	if _, ok := g.encoders[ext]; !ok {
		// Unknown or missing extension: name the file after the decoded format.
		_, base, _ := mediakey.Split(name)
		ext = extForFormat(format)
		name = base + "." + ext
	}
	primary := strings.TrimSuffix(ownerDir, "/") + "/" + name

	result := &simplemedia.GenerateResult{PrimaryPath: primary}
	var written []string

	// Re-encoding drops embedded metadata.
	if err := g.writeEncoded(ctx, primary, ext, img); err != nil {
		return nil, fmt.Errorf("%w: primary: %w", simplemedia.ErrDerivativeGeneration, err)
	}
	written = append(written, primary)

	for _, width := range mediakey.WidthsFor(img.Bounds().Dx()) {
		key := mediakey.VariantPath(primary, width)
		if err := g.writeEncoded(ctx, key, ext, Scale(img, width)); err != nil {
			g.cleanup(ctx, written)
			return nil, fmt.Errorf("%w: variant %dw: %w", simplemedia.ErrDerivativeGeneration, width, err)
		}
		written = append(written, key)
		result.VariantPaths = append(result.VariantPaths, key)
	}

	if mediakey.HasAlternate(primary) {
		key := mediakey.AlternatePath(primary)
		switch {
		case g.alternate == nil:
			g.logger.DebugContext(ctx, "alternate copy disabled", "key", primary)
		default:
			if err := g.writeEncoded(ctx, key, mediakey.AlternateExt, img); err != nil {
				g.logger.WarnContext(ctx, "alternate encoding failed", "key", key, "err", err)
				// The store may hold a partial object.
				_ = g.store.Delete(ctx, key)
			} else {
				result.AlternatePath = key
			}
		}
	}

	return result, nil
}

func (g *Generator) source(src *simplemedia.SourceImage) (image.Image, string, error) {
	if src == nil {
		return nil, "", errors.New("no source image")
	}
	if src.Info != nil && src.Info.Image != nil {
		return src.Info.Image, src.Info.Format, nil
	}
	img, err := Decode(src.Data)
	if err != nil {
		return nil, "", fmt.Errorf("decode source: %w", err)
	}
	format := ""
	if src.Info != nil {
		format = src.Info.Format
	}
	if format == "" {
		format = "png"
	}
	return img, format, nil
}

func (g *Generator) writeEncoded(ctx context.Context, key, ext string, img image.Image) error {
	enc, ok := g.encoders[ext]
	if !ok {
		return fmt.Errorf("no encoder for .%s", ext)
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", ext, err)
	}
	return g.upload(ctx, key, ext, buf.Bytes())
}

func (g *Generator) upload(ctx context.Context, key, ext string, data []byte) error {
	return g.store.UploadWithParams(ctx, bytes.NewReader(data), simplemedia.UploadParams{
		ObjectKey: key,
		MimeType:  mimeForExt(ext),
	})
}

func (g *Generator) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := g.store.Delete(ctx, key); err != nil && !errors.Is(err, simplemedia.ErrObjectNotFound) {
			g.logger.WarnContext(ctx, "failed to remove partial derivative", "key", key, "err", err)
		}
	}
}
