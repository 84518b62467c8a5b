package redact

import (
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/openphi/deidentify/internal/document"
)

const (
	maxOverlayFontSize = 11.0
	minOverlayFontSize = 5.0
)

var (
	regularFont = mustParseFont(goregular.TTF)
	monoFont    = mustParseFont(gomono.TTF)
)

func mustParseFont(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic("redact: parse embedded font: " + err.Error())
	}
	return f
}

// drawOverlayText centers text inside the box using a font size fitted to
// the box. Sizes are chosen in page points and scaled to raster pixels.
func drawOverlayText(dc *gg.Context, text string, box document.BoundingBox, scale float64, font *truetype.Font, r, g, b float64) {
	if text == "" {
		return
	}

	size := fitFontSize(box.Width(), box.Height(), text)
	face := truetype.NewFace(font, &truetype.Options{Size: size * scale})
	dc.SetFontFace(face)
	dc.SetRGB(r, g, b)

	cx := (box.X0 + box.Width()/2) * scale
	cy := (box.Y0 + box.Height()/2) * scale
	dc.DrawStringAnchored(text, cx, cy, 0.5, 0.5)
}

// fitFontSize estimates the largest size (in points) at which text fits the
// box width, clamped to a readable range.
func fitFontSize(width, height float64, text string) float64 {
	if text == "" {
		return maxOverlayFontSize
	}
	estimated := width / (float64(len(text)) * 0.5)
	if byHeight := height * 0.9; byHeight < estimated {
		estimated = byHeight
	}
	if estimated > maxOverlayFontSize {
		return maxOverlayFontSize
	}
	if estimated < minOverlayFontSize {
		return minOverlayFontSize
	}
	return estimated
}
