package simplemedia

import (
	"image"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaKind is the domain type for the kind of an uploaded asset.
type MediaKind string

// Media kind constants (typed).
const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaSource tells whether the primary asset lives in the blob store or is an
// external embed URL.
type MediaSource string

const (
	MediaSourceUpload MediaSource = "upload"
	MediaSourceEmbed  MediaSource = "embed"
)

// IntendedUse selects the policy applied by the image validator.
type IntendedUse string

const (
	UseGeneral IntendedUse = "general"
	UseHero    IntendedUse = "hero"
	UseSlider  IntendedUse = "slider"
)

// RequiresWidescreen reports whether the use enforces the hero/slider
// minimum-width and 16:9 aspect policy.
func (u IntendedUse) RequiresWidescreen() bool {
	return u == UseHero || u == UseSlider
}

// ParseIntendedUse maps a request value to an IntendedUse. Empty input is
// treated as general.
func ParseIntendedUse(s string) (IntendedUse, bool) {
	switch IntendedUse(strings.ToLower(strings.TrimSpace(s))) {
	case "", UseGeneral:
		return UseGeneral, true
	case UseHero:
		return UseHero, true
	case UseSlider:
		return UseSlider, true
	default:
		return "", false
	}
}

// Flag tags a media asset for selection in public views. The set is open;
// the constants below are the ones the site knows about.
type Flag string

const (
	FlagHomeSlider Flag = "home_slider"
	FlagFeatured   Flag = "featured"
)

// NormalizeFlags lower-cases, trims, de-duplicates and sorts flags.
func NormalizeFlags(flags []Flag) []Flag {
	seen := make(map[Flag]struct{}, len(flags))
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		f = Flag(strings.ToLower(strings.TrimSpace(string(f))))
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Owner identifies the entity a media asset is attached to. It is a lookup
// pair only, never a pointer to the entity.
type Owner struct {
	Type OwnerType `json:"owner_type"`
	ID   int64     `json:"owner_id"`
}

// MediaAsset is one uploaded image or video attached to an owner.
//
// Derivative paths (resized variants, the alternate encoding, video
// thumbnails) are never stored; they are recomputed from PrimaryPath.
type MediaAsset struct {
	ID           uuid.UUID   `json:"id"`
	OwnerType    OwnerType   `json:"owner_type"`
	OwnerID      int64       `json:"owner_id"`
	Kind         MediaKind   `json:"kind"`
	Source       MediaSource `json:"source"`
	PrimaryPath  string      `json:"primary_path"`
	Caption      string      `json:"caption,omitempty"`
	MimeType     string      `json:"mime_type,omitempty"`
	Width        *int        `json:"width,omitempty"`
	Height       *int        `json:"height,omitempty"`
	ByteSize     int64       `json:"byte_size"`
	DisplayOrder int         `json:"display_order"`
	Flags        []Flag      `json:"flags,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Owner returns the owner lookup pair of the asset.
func (m *MediaAsset) Owner() Owner {
	return Owner{Type: m.OwnerType, ID: m.OwnerID}
}

// HasFlag reports whether the asset carries the given flag.
func (m *MediaAsset) HasFlag(flag Flag) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// IsStored reports whether the primary asset lives in the blob store.
func (m *MediaAsset) IsStored() bool {
	return m.Source != MediaSourceEmbed
}

// MediaURLs holds public URLs for an asset and its derivatives.
type MediaURLs struct {
	Primary   string         `json:"primary"`
	Variants  map[int]string `json:"variants,omitempty"`
	Alternate string         `json:"alternate,omitempty"`
	Thumbnail string         `json:"thumbnail,omitempty"`
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// File is an uploaded payload as received from the client.
type File struct {
	Filename string
	Data     []byte
}

// Size returns the payload length in bytes.
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// ImageInfo is the result of a successful image validation. Image holds the
// fully decoded, orientation-normalized picture.
type ImageInfo struct {
	Format   string // jpeg, png or webp
	MimeType string
	Width    int
	Height   int
	ByteSize int64
	Image    image.Image
}

// VideoInfo is the result of a successful video file validation.
type VideoInfo struct {
	MimeType string
	ByteSize int64
}

// SourceImage is a validated upload handed to the Generator.
type SourceImage struct {
	Filename   string
	Data       []byte
	Info       *ImageInfo
	UploadedAt time.Time
}

// GenerateResult lists the storage keys written by the Generator.
type GenerateResult struct {
	PrimaryPath   string
	VariantPaths  []string
	AlternatePath string
}

// Paths returns every key written, primary first.
func (r *GenerateResult) Paths() []string {
	out := make([]string, 0, len(r.VariantPaths)+2)
	out = append(out, r.PrimaryPath)
	out = append(out, r.VariantPaths...)
	if r.AlternatePath != "" {
		out = append(out, r.AlternatePath)
	}
	return out
}

// Upload limits
const (
	MaxImageBytes      int64 = 5 << 20
	MaxVideoBytes      int64 = 50 << 20
	MaxImageDimension        = 4096
	MinWidescreenWidth       = 1200
)

// Content types reported by media mutations to the Invalidator.
const (
	ContentTypeMedia = "media"
)
