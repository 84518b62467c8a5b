// Package redact renders mode-specific overlays onto document pages and
// reassembles the result as a new PDF. Pages are flattened to rasters before
// reassembly, so no text stream survives under a drawn box.
package redact

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/signintech/gopdf"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/pkg/logging"
)

// renderDPI is the raster resolution of the output pages. High enough to
// keep body text legible, low enough to keep output files reasonable.
const renderDPI = 150.0

// PageSource provides original page rasters and dimensions. The PDF opener
// in this package implements it; tests substitute synthetic images.
type PageSource interface {
	NumPages() int
	// PageSize returns the page dimensions in points.
	PageSize(index int) (width, height float64)
	Raster(index int, dpi float64) (image.Image, error)
}

// Redactor draws redaction overlays and produces the output document.
type Redactor struct {
	dpi    float64
	logger *logging.Logger
}

// New creates a Redactor.
func New(logger *logging.Logger) *Redactor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Redactor{dpi: renderDPI, logger: logger}
}

// Apply renders every page with its targets drawn in the given mode and
// returns the assembled PDF. Pages without targets are still re-rendered;
// output page sizes match the source exactly.
func (r *Redactor) Apply(ctx context.Context, src PageSource, targets []document.LocatedTarget, mode document.Mode) ([]byte, error) {
	byPage := make(map[int][]document.LocatedTarget)
	for _, t := range targets {
		byPage[t.PageIndex] = append(byPage[t.PageIndex], t)
	}

	out := gopdf.GoPdf{}
	out.Start(gopdf.Config{PageSize: *gopdf.PageSizeLetter})

	for i := 0; i < src.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		width, height := src.PageSize(i)
		img, err := src.Raster(i, r.dpi)
		if err != nil {
			return nil, fmt.Errorf("redact: rasterize page %d: %w", i, err)
		}

		rendered := renderPage(img, byPage[i], mode, r.dpi/72.0)

		out.AddPageWithOption(gopdf.PageOption{PageSize: &gopdf.Rect{W: width, H: height}})
		if err := out.ImageFrom(rendered, 0, 0, &gopdf.Rect{W: width, H: height}); err != nil {
			return nil, fmt.Errorf("redact: place page %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("redact: assemble output: %w", err)
	}

	r.logger.Info("document redacted",
		"pages", src.NumPages(),
		"targets", len(targets),
		"mode", string(mode),
	)
	return buf.Bytes(), nil
}

// renderPage draws each target's box onto the page raster. Coordinates are
// page points; scale converts them to raster pixels.
func renderPage(img image.Image, targets []document.LocatedTarget, mode document.Mode, scale float64) image.Image {
	if len(targets) == 0 {
		return img
	}

	dc := gg.NewContextForImage(img)
	for _, t := range targets {
		x := t.BBox.X0 * scale
		y := t.BBox.Y0 * scale
		w := t.BBox.Width() * scale
		h := t.BBox.Height() * scale

		switch mode {
		case document.ModeMask:
			dc.SetRGB(0, 0, 0)
			dc.DrawRectangle(x, y, w, h)
			dc.Fill()
		case document.ModePlaceholder:
			tag := phi.PlaceholderTag(t.Finding.Category, t.Finding.Subcategory)
			dc.SetRGB(0.15, 0.15, 0.22)
			dc.DrawRectangle(x, y, w, h)
			dc.Fill()
			drawOverlayText(dc, tag, t.BBox, scale, monoFont, 1, 1, 1)
		case document.ModeSynthetic:
			dc.SetRGB(1, 1, 1)
			dc.DrawRectangle(x, y, w, h)
			dc.Fill()
			drawOverlayText(dc, t.Replacement, t.BBox, scale, regularFont, 0.1, 0.1, 0.6)
		}
	}
	return dc.Image()
}
