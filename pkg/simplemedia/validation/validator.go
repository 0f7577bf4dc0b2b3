// Package validation enforces the upload policies for images, video files and
// video embed URLs. Validation never writes anything.
package validation

import (
	"bytes"
	"image"
	"math"
	"net/url"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Policy holds the limits applied by the Validator.
type Policy struct {
	MaxImageBytes      int64
	MaxVideoBytes      int64
	MaxDimension       int
	MinWidescreenWidth int
	AspectRatio        float64
	AspectTolerance    float64 // fraction of AspectRatio
	ImageTypes         []string
	VideoTypes         []string
	VideoHosts         []string
}

// DefaultPolicy returns the site's upload policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxImageBytes:      simplemedia.MaxImageBytes,
		MaxVideoBytes:      simplemedia.MaxVideoBytes,
		MaxDimension:       simplemedia.MaxImageDimension,
		MinWidescreenWidth: simplemedia.MinWidescreenWidth,
		AspectRatio:        16.0 / 9.0,
		AspectTolerance:    0.1,
		ImageTypes:         []string{"image/jpeg", "image/png", "image/webp"},
		VideoTypes:         []string{"video/mp4"},
		VideoHosts:         []string{"youtube.com", "www.youtube.com", "youtu.be", "vimeo.com", "www.vimeo.com"},
	}
}

// Option configures a Validator
type Option func(*Validator)

// WithPolicy replaces the whole policy
func WithPolicy(p Policy) Option {
	return func(v *Validator) {
		v.policy = p
	}
}

// WithVideoHosts replaces the embed host allow-list
func WithVideoHosts(hosts ...string) Option {
	return func(v *Validator) {
		v.policy.VideoHosts = hosts
	}
}

// Validator implements simplemedia.Validator.
type Validator struct {
	policy Policy
}

// New creates a Validator with the default policy.
func New(opts ...Option) *Validator {
	v := &Validator{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the active policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// ValidateImage checks size, sniffed type, decodability, dimensions and, for
// hero and slider uses, the widescreen rules. The returned info carries the
// decoded image with EXIF orientation applied.
func (v *Validator) ValidateImage(file simplemedia.File, use simplemedia.IntendedUse) (*simplemedia.ImageInfo, error) {
	if len(file.Data) == 0 {
		return nil, simplemedia.Reject(simplemedia.RejectEmpty, "image %q is empty", file.Filename)
	}
	if file.Size() > v.policy.MaxImageBytes {
		return nil, simplemedia.Reject(simplemedia.RejectTooLarge,
			"image is %d bytes, limit is %d", file.Size(), v.policy.MaxImageBytes)
	}

	mtype := mimetype.Detect(file.Data)
	if !matchesAny(mtype, v.policy.ImageTypes) {
		return nil, simplemedia.Reject(simplemedia.RejectUnsupportedType, "image type %s is not allowed", mtype.String())
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return nil, simplemedia.Reject(simplemedia.RejectUndecodable, "cannot read image header: %v", err)
	}
	if cfg.Width > v.policy.MaxDimension || cfg.Height > v.policy.MaxDimension {
		return nil, simplemedia.Reject(simplemedia.RejectDimensions,
			"image is %dx%d, limit is %d", cfg.Width, cfg.Height, v.policy.MaxDimension)
	}

	img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, simplemedia.Reject(simplemedia.RejectUndecodable, "cannot decode image: %v", err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Orientation can swap the axes, so the widescreen rules use decoded bounds.
	if use.RequiresWidescreen() {
		if err := v.checkWidescreen(width, height); err != nil {
			return nil, err
		}
	}

	return &simplemedia.ImageInfo{
		Format:   format,
		MimeType: baseType(mtype),
		Width:    width,
		Height:   height,
		ByteSize: file.Size(),
		Image:    img,
	}, nil
}

func (v *Validator) checkWidescreen(width, height int) error {
	if width < v.policy.MinWidescreenWidth {
		return simplemedia.Reject(simplemedia.RejectTooNarrow,
			"width %d is below the minimum of %d", width, v.policy.MinWidescreenWidth)
	}
	if height == 0 {
		return simplemedia.Reject(simplemedia.RejectAspectRatio, "image has no height")
	}
	ratio := float64(width) / float64(height)
	if math.Abs(ratio-v.policy.AspectRatio) > v.policy.AspectTolerance*v.policy.AspectRatio {
		return simplemedia.Reject(simplemedia.RejectAspectRatio,
			"aspect ratio %.3f is outside %.3f ±%.0f%%", ratio, v.policy.AspectRatio, v.policy.AspectTolerance*100)
	}
	return nil
}

// ValidateVideoFile checks the size and sniffed type of an uploaded video.
func (v *Validator) ValidateVideoFile(file simplemedia.File) (*simplemedia.VideoInfo, error) {
	if len(file.Data) == 0 {
		return nil, simplemedia.Reject(simplemedia.RejectEmpty, "video %q is empty", file.Filename)
	}
	if file.Size() > v.policy.MaxVideoBytes {
		return nil, simplemedia.Reject(simplemedia.RejectTooLarge,
			"video is %d bytes, limit is %d", file.Size(), v.policy.MaxVideoBytes)
	}
	mtype := mimetype.Detect(file.Data)
	if !matchesAny(mtype, v.policy.VideoTypes) {
		return nil, simplemedia.Reject(simplemedia.RejectUnsupportedType, "video type %s is not allowed", mtype.String())
	}
	return &simplemedia.VideoInfo{MimeType: baseType(mtype), ByteSize: file.Size()}, nil
}

// ValidateVideoURL accepts http(s) URLs whose host is on the allow-list.
func (v *Validator) ValidateVideoURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, simplemedia.Reject(simplemedia.RejectInvalidURL, "video URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, simplemedia.Reject(simplemedia.RejectInvalidURL, "cannot parse video URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, simplemedia.Reject(simplemedia.RejectInvalidURL, "video URL scheme %q is not allowed", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range v.policy.VideoHosts {
		if host == strings.ToLower(allowed) {
			return u, nil
		}
	}
	return nil, simplemedia.Reject(simplemedia.RejectHostNotAllowed, "video host %q is not allowed", host)
}

func matchesAny(mtype *mimetype.MIME, allowed []string) bool {
	for _, a := range allowed {
		if mtype.Is(a) {
			return true
		}
	}
	return false
}

func baseType(mtype *mimetype.MIME) string {
	s := mtype.String()
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
