package extract

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/openphi/deidentify/internal/document"
)

// pdfDocument gives page-level access to a PDF held in memory: positioned
// native text via the pdf parser and raster images via MuPDF.
type pdfDocument struct {
	reader *pdf.Reader
	fz     *fitz.Document
}

func openPDF(data []byte) (*pdfDocument, error) {
	fz, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}

	doc := &pdfDocument{fz: fz}

	// The native text parser can choke on scanned or malformed files that
	// MuPDF still renders; keep going with OCR only in that case.
	if reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		doc.reader = reader
	}
	return doc, nil
}

func (d *pdfDocument) Close() {
	if d.fz != nil {
		d.fz.Close()
	}
}

func (d *pdfDocument) NumPages() int {
	return d.fz.NumPage()
}

// PageSize returns the page dimensions in points.
func (d *pdfDocument) PageSize(index int) (width, height float64) {
	bound, err := d.fz.Bound(index)
	if err != nil || bound.Dx() <= 0 || bound.Dy() <= 0 {
		// US Letter default.
		return 612, 792
	}
	return float64(bound.Dx()), float64(bound.Dy())
}

// Raster renders the page at the given DPI.
func (d *pdfDocument) Raster(index int, dpi float64) (image.Image, error) {
	return d.fz.ImageDPI(index, dpi)
}

// NativeSpans extracts positioned text from the page's content stream and
// groups it into line-level spans in reading order.
func (d *pdfDocument) NativeSpans(index int) ([]document.TextSpan, error) {
	if d.reader == nil {
		return nil, errors.New("extract: no native text parser for document")
	}
	if index < 0 || index >= d.reader.NumPage() {
		return nil, fmt.Errorf("extract: page %d out of range", index)
	}

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return nil, fmt.Errorf("extract: page %d has no content", index)
	}

	_, height := d.PageSize(index)
	return spansFromTexts(page.Content().Text, index, height), nil
}

// spansFromTexts groups positioned text fragments into line spans. Fragment
// coordinates use a bottom-left origin; span boxes use top-left.
func spansFromTexts(texts []pdf.Text, pageIndex int, pageHeight float64) []document.TextSpan {
	if len(texts) == 0 {
		return nil
	}

	// Reading order: top of the page first (higher Y in PDF space), then
	// left to right.
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sameBaseline(sorted[i], sorted[j]) {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var spans []document.TextSpan
	var line []pdf.Text
	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		if len(line) > 0 && !sameBaseline(line[0], t) {
			if span, ok := lineSpan(line, pageIndex, pageHeight); ok {
				spans = append(spans, span)
			}
			line = line[:0]
		}
		line = append(line, t)
	}
	if span, ok := lineSpan(line, pageIndex, pageHeight); ok {
		spans = append(spans, span)
	}
	return spans
}

func sameBaseline(a, b pdf.Text) bool {
	tol := a.FontSize * 0.5
	if tol < 2 {
		tol = 2
	}
	diff := a.Y - b.Y
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}

func lineSpan(line []pdf.Text, pageIndex int, pageHeight float64) (document.TextSpan, bool) {
	if len(line) == 0 {
		return document.TextSpan{}, false
	}

	var b strings.Builder
	x0, x1 := line[0].X, line[0].X+line[0].W
	baseline, fontSize := line[0].Y, line[0].FontSize
	prevEnd := line[0].X

	for i, t := range line {
		if i > 0 && t.X-prevEnd > wordGap(t.FontSize) && !strings.HasSuffix(b.String(), " ") {
			b.WriteString(" ")
		}
		b.WriteString(t.S)
		prevEnd = t.X + t.W

		if t.X < x0 {
			x0 = t.X
		}
		if end := t.X + t.W; end > x1 {
			x1 = end
		}
		if t.FontSize > fontSize {
			fontSize = t.FontSize
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return document.TextSpan{}, false
	}

	// Convert the baseline into a top-left box: ascenders sit roughly one
	// font size above the baseline, descenders a fifth below.
	top := pageHeight - baseline - fontSize
	bottom := pageHeight - baseline + fontSize*0.2
	return document.TextSpan{
		PageIndex: pageIndex,
		Text:      text,
		BBox: document.BoundingBox{
			X0: x0,
			Y0: top,
			X1: x1,
			Y1: bottom,
		},
		Source: document.SourceNative,
	}, true
}

func wordGap(fontSize float64) float64 {
	gap := fontSize * 0.25
	if gap < 1 {
		gap = 1
	}
	return gap
}
