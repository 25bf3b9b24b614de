package labelcard

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

const (
	titleSize  = 16.0
	detailSize = 13.0
)

// Renderer implements ports.RasterComposer with gg.
type Renderer struct {
	title  font.Face
	detail font.Face
}

// NewRenderer loads the embedded Go fonts.
func NewRenderer() (*Renderer, error) {
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse title font: %w", err)
	}
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse detail font: %w", err)
	}
	return &Renderer{
		title:  truetype.NewFace(bold, &truetype.Options{Size: titleSize}),
		detail: truetype.NewFace(regular, &truetype.Options{Size: detailSize}),
	}, nil
}

func (r *Renderer) measure(dc *gg.Context, face font.Face) MeasureFunc {
	return func(s string) float64 {
		dc.SetFontFace(face)
		w, _ := dc.MeasureString(s)
		return w
	}
}

// ComposePNG draws the card onto a copy of frame and encodes it as PNG.
func (r *Renderer) ComposePNG(frame image.Image, card domain.LabelCard) ([]byte, error) {
	if frame == nil {
		return nil, errors.New("compose png: nil frame")
	}
	dc := gg.NewContextForImage(frame)

	dc.SetFontFace(r.title)
	titleH := dc.FontHeight() * 1.25
	dc.SetFontFace(r.detail)
	detailH := dc.FontHeight() * 1.25

	l := ComputeLayout(card, r.measure(dc, r.title), r.measure(dc, r.detail), titleH, detailH)

	// shadow
	dc.SetRGBA(0, 0, 0, 0.18)
	dc.DrawRoundedRectangle(l.X+2, l.Y+3, l.Width, l.Height, CornerRadius)
	dc.Fill()

	dc.SetRGBA(1, 1, 1, 0.94)
	dc.DrawRoundedRectangle(l.X, l.Y, l.Width, l.Height, CornerRadius)
	dc.Fill()

	y := l.Y + Padding
	dc.SetFontFace(r.title)
	dc.SetRGB(0.12, 0.12, 0.12)
	for _, line := range l.TitleLines {
		dc.DrawStringAnchored(line, l.X+Padding, y, 0, 1)
		y += l.TitleLineH
	}
	if len(l.TitleLines) > 0 {
		y += Gap
	}

	swatchX := l.X + Padding + SwatchRadius
	swatchY := y + l.DetailLineH/2
	dc.DrawCircle(swatchX, swatchY, SwatchRadius)
	if card.Color != "" {
		dc.SetHexColor(card.Color)
	} else {
		dc.SetRGB(0.5, 0.5, 0.5)
	}
	dc.FillPreserve()
	dc.SetRGBA(0, 0, 0, 0.35)
	dc.SetLineWidth(1)
	dc.Stroke()

	dc.SetFontFace(r.detail)
	dc.SetRGB(0.25, 0.25, 0.25)
	dc.DrawStringAnchored(l.Detail, swatchX+SwatchRadius+Gap, swatchY, 0, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
