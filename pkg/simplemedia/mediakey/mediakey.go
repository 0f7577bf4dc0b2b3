// Package mediakey computes storage keys for uploaded media and every
// derivative produced from it. Derivative keys are always recomputed from the
// primary key, so generation and cleanup share these functions.
package mediakey

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VariantWidths is the fixed, ordered set of resize targets.
var VariantWidths = []int{1920, 1280, 768}

const (
	// AlternateExt is the extension of the alternate encoding.
	AlternateExt = "webp"

	thumbSuffix = "_thumb.jpg"
)

// NameGenerator defines the interface for primary file naming strategies
type NameGenerator interface {
	// GenerateName returns a collision-resistant file name that keeps the
	// lower-cased extension of the original file.
	GenerateName(filename string, at time.Time) string
}

// HashedNameGenerator derives a 32 hex character name from the original file
// name, the upload time and a random salt. Image content is not hashed, so
// re-uploading identical bytes never reuses an earlier asset.
type HashedNameGenerator struct {
	// Salt returns the random component. Defaults to a fresh UUID.
	Salt func() string
}

func NewHashedNameGenerator() *HashedNameGenerator {
	return &HashedNameGenerator{
		Salt: func() string { return uuid.NewString() },
	}
}

func (g *HashedNameGenerator) GenerateName(filename string, at time.Time) string {
	salt := ""
	if g.Salt != nil {
		salt = g.Salt()
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%d|%s", filename, at.UnixNano(), salt)))
	name := hex.EncodeToString(sum[:])
	if ext := Ext(filename); ext != "" {
		name += "." + ext
	}
	return name
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// OwnerDirectory returns media/{owner}/{YYYY}/{MM} for the upload time.
func OwnerDirectory(ownerSlug string, at time.Time) string {
	return fmt.Sprintf("media/%s/%04d/%02d", strings.ToLower(ownerSlug), at.Year(), int(at.Month()))
}

// Split breaks a key into directory, base name and extension (no dot).
func Split(key string) (dir, base, ext string) {
	dir = path.Dir(key)
	file := path.Base(key)
	ext = path.Ext(file)
	base = strings.TrimSuffix(file, ext)
	return dir, base, strings.TrimPrefix(ext, ".")
}

func join(dir, file string) string {
	if dir == "." || dir == "" {
		return file
	}
	return dir + "/" + file
}

// VariantPath returns {dir}/{base}_{width}w.{ext}.
func VariantPath(primary string, width int) string {
	dir, base, ext := Split(primary)
	file := fmt.Sprintf("%s_%dw", base, width)
	if ext != "" {
		file += "." + ext
	}
	return join(dir, file)
}

// HasAlternate reports whether an alternate encoding is attempted for the
// primary. Only jpg, jpeg and png primaries get one.
func HasAlternate(primary string) bool {
	switch Ext(primary) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// AlternatePath returns {dir}/{base}.webp.
func AlternatePath(primary string) string {
	dir, base, _ := Split(primary)
	return join(dir, base+"."+AlternateExt)
}

// ThumbnailPath returns the placeholder still of a video: {dir}/{base}_thumb.jpg.
func ThumbnailPath(primary string) string {
	dir, base, _ := Split(primary)
	return join(dir, base+thumbSuffix)
}

// WidthsFor returns the variant widths emitted for a source of the given
// width. Each target is compared against the source width only.
func WidthsFor(sourceWidth int) []int {
	out := make([]int, 0, len(VariantWidths))
	for _, w := range VariantWidths {
		if sourceWidth > w {
			out = append(out, w)
		}
	}
	return out
}

// ExpectedPaths returns exactly the keys written for an image primary whose
// source is sourceWidth pixels wide, assuming the alternate encoding succeeds.
func ExpectedPaths(primary string, sourceWidth int) []string {
	out := []string{primary}
	for _, w := range WidthsFor(sourceWidth) {
		out = append(out, VariantPath(primary, w))
	}
	if HasAlternate(primary) {
		out = append(out, AlternatePath(primary))
	}
	return out
}

// CandidatePaths returns every key that may exist for a primary: the primary,
// all variant widths and the alternate for images, or the thumbnail for
// videos. It is a superset of what generation writes and is used for cleanup.
func CandidatePaths(primary string, video bool) []string {
	if video {
		return []string{primary, ThumbnailPath(primary)}
	}
	out := []string{primary}
	for _, w := range VariantWidths {
		out = append(out, VariantPath(primary, w))
	}
	if HasAlternate(primary) {
		out = append(out, AlternatePath(primary))
	}
	return out
}
