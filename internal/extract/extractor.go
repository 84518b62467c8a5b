// Package extract turns raw document bytes into per-page text spans with
// geometry and provenance. Native PDF text is preferred; pages with too
// little native text fall back to a 300 DPI raster pass through OCR.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/pkg/logging"
)

// ErrUnsupportedType indicates the uploaded file type cannot be processed.
// Unsupported types fail the whole request.
var ErrUnsupportedType = errors.New("extract: unsupported file type")

const (
	// minNativeChars is the minimum character count for a page's native
	// text to be considered usable. Below this the page is re-read via OCR.
	minNativeChars = 30

	// ocrDPI is the raster resolution for the OCR pass.
	ocrDPI = 300.0

	// pdfPointDPI is the native PDF point resolution.
	pdfPointDPI = 72.0
)

// Extractor produces document pages lazily, page by page. A page that fails
// both the native and OCR paths is emitted with zero spans; the document is
// never rejected for a single bad page.
type Extractor struct {
	ocr       OCREngine
	enableOCR bool
	logger    *logging.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithOCRDisabled turns off the OCR fallback entirely.
func WithOCRDisabled() Option {
	return func(e *Extractor) { e.enableOCR = false }
}

// New creates an Extractor. The OCR engine may be nil, in which case pages
// without native text are emitted empty.
func New(ocr OCREngine, logger *logging.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Extractor{
		ocr:       ocr,
		enableOCR: true,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads every page of the document and returns the pages in order.
// Only PDF input is supported; any other mime type fails with
// ErrUnsupportedType.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) ([]document.Page, error) {
	if !supportedType(mimeType, data) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	doc, err := openPDF(data)
	if err != nil {
		return nil, fmt.Errorf("extract: open document: %w", err)
	}
	defer doc.Close()

	pages := make([]document.Page, 0, doc.NumPages())
	for i := 0; i < doc.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, e.extractPage(ctx, doc, i))
	}
	return pages, nil
}

// extractPage runs the native path, then the OCR fallback. Failures are
// recovered locally: the page comes back with zero spans.
func (e *Extractor) extractPage(ctx context.Context, doc *pdfDocument, index int) document.Page {
	width, height := doc.PageSize(index)
	page := document.Page{Index: index, Width: width, Height: height}

	spans, nativeErr := doc.NativeSpans(index)
	if nativeErr != nil {
		e.logger.Warn("native text extraction failed", "page", index, "error", nativeErr)
	}
	if charCount(spans) >= minNativeChars {
		page.Spans = spans
		return page
	}

	if !e.enableOCR || e.ocr == nil {
		page.Spans = spans
		return page
	}

	ocrSpans, err := e.ocrPage(ctx, doc, index, width, height)
	if err != nil {
		e.logger.Warn("ocr fallback failed", "page", index, "error", err)
		page.Spans = spans
		return page
	}
	if charCount(ocrSpans) > charCount(spans) {
		page.Spans = ocrSpans
		page.OCR = true
		page.Scale = ocrDPI / pdfPointDPI
		e.logger.Info("page extracted via ocr",
			"page", index,
			"spans", len(ocrSpans),
			"chars", charCount(ocrSpans),
		)
		return page
	}

	page.Spans = spans
	return page
}

// ocrPage rasterizes the page at ocrDPI and maps recognized line geometry
// from raster pixel space back into page points.
func (e *Extractor) ocrPage(ctx context.Context, doc *pdfDocument, index int, width, height float64) ([]document.TextSpan, error) {
	img, err := doc.Raster(index, ocrDPI)
	if err != nil {
		return nil, fmt.Errorf("extract: rasterize page %d: %w", index, err)
	}

	lines, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extract: ocr page %d: %w", index, err)
	}

	scale := ocrDPI / pdfPointDPI
	return spansFromOCRLines(lines, index, scale, width, height), nil
}

// spansFromOCRLines converts raster-pixel OCR lines into page-coordinate
// spans, clipped to the page.
func spansFromOCRLines(lines []OCRLine, pageIndex int, scale, width, height float64) []document.TextSpan {
	spans := make([]document.TextSpan, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		bbox := document.BoundingBox{
			X0: float64(line.BBox.Min.X) / scale,
			Y0: float64(line.BBox.Min.Y) / scale,
			X1: float64(line.BBox.Max.X) / scale,
			Y1: float64(line.BBox.Max.Y) / scale,
		}.Clip(width, height)
		spans = append(spans, document.TextSpan{
			PageIndex:  pageIndex,
			Text:       text,
			BBox:       bbox,
			Source:     document.SourceOCR,
			Confidence: line.Confidence,
		})
	}
	return spans
}

func charCount(spans []document.TextSpan) int {
	n := 0
	for _, s := range spans {
		n += len(strings.TrimSpace(s.Text))
	}
	return n
}

func supportedType(mimeType string, data []byte) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	switch mt {
	case "application/pdf", "application/x-pdf":
		return true
	case "", "application/octet-stream":
		// Fall back to sniffing the magic bytes.
		return len(data) >= 5 && string(data[:5]) == "%PDF-"
	}
	return false
}
