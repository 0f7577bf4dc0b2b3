// Package webp provides the WebP encoder used for webp primaries and
// alternate encodings. It needs cgo.
package webp

import (
	"image"
	"io"

	"github.com/chai2010/webp"
)

// Encoder encodes images as WebP.
type Encoder struct {
	Quality  float32
	Lossless bool
}

// New returns a lossy encoder at the given quality (0-100).
func New(quality float32) *Encoder {
	return &Encoder{Quality: quality}
}

// Encode implements derivative.Encoder.
func (e *Encoder) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{
		Lossless: e.Lossless,
		Quality:  e.Quality,
	})
}
