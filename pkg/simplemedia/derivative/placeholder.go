package derivative

import (
	"bytes"
	"fmt"
	"image/color"
	"image/jpeg"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Placeholder renders the still image stored next to uploaded videos: a
// fixed canvas with a play glyph and the label centered.
type Placeholder struct {
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
	Face       font.Face
	TextScale  float64
	Quality    int
}

// NewPlaceholder returns the 1280x720 placeholder renderer.
func NewPlaceholder() *Placeholder {
	return &Placeholder{
		Width:      1280,
		Height:     720,
		Background: color.NRGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff},
		Foreground: color.White,
		Face:       basicfont.Face7x13,
		TextScale:  4,
		Quality:    80,
	}
}

// RenderThumbnail implements simplemedia.ThumbnailRenderer.
func (p *Placeholder) RenderThumbnail(label string) ([]byte, error) {
	w, h := float64(p.Width), float64(p.Height)
	dc := gg.NewContext(p.Width, p.Height)

	dc.SetColor(p.Background)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	cx, cy := w/2, h/2
	r := h / 8
	dc.SetColor(p.Foreground)
	dc.MoveTo(cx-r*0.6, cy-r-r)
	dc.LineTo(cx+r, cy-r)
	dc.LineTo(cx-r*0.6, cy)
	dc.ClosePath()
	dc.Fill()

	dc.Push()
	dc.SetFontFace(p.Face)
	dc.ScaleAbout(p.TextScale, p.TextScale, cx, cy+r)
	dc.DrawStringAnchored(label, cx, cy+r, 0.5, 0.5)
	dc.Pop()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
