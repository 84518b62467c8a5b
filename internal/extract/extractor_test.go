package extract

import (
	"context"
	"image"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openphi/deidentify/internal/document"
)

func TestSupportedType(t *testing.T) {
	pdfMagic := []byte("%PDF-1.7\n")

	tests := []struct {
		name string
		mime string
		data []byte
		want bool
	}{
		{"pdf mime", "application/pdf", nil, true},
		{"pdf mime with charset", "application/pdf; charset=binary", nil, true},
		{"x-pdf", "application/x-pdf", nil, true},
		{"octet-stream with magic", "application/octet-stream", pdfMagic, true},
		{"empty mime with magic", "", pdfMagic, true},
		{"octet-stream no magic", "application/octet-stream", []byte("hello"), false},
		{"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", nil, false},
		{"png", "image/png", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, supportedType(tt.mime, tt.data))
		})
	}
}

func TestExtractRejectsUnsupportedType(t *testing.T) {
	e := New(nil, nil)
	_, err := e.Extract(context.Background(), []byte("not a pdf"), "text/plain")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSpansFromTexts(t *testing.T) {
	const pageHeight = 792.0

	// Two lines in bottom-left-origin coordinates: "Patient: John Smith"
	// near the top, "DOB 01/02/1980" below it.
	texts := []pdf.Text{
		{S: "Patient:", X: 72, Y: 720, W: 40, FontSize: 11},
		{S: "John", X: 116, Y: 720, W: 24, FontSize: 11},
		{S: "Smith", X: 144, Y: 720, W: 30, FontSize: 11},
		{S: "DOB", X: 72, Y: 700, W: 22, FontSize: 11},
		{S: "01/02/1980", X: 98, Y: 700, W: 55, FontSize: 11},
	}

	spans := spansFromTexts(texts, 0, pageHeight)
	require.Len(t, spans, 2)

	assert.Equal(t, "Patient: John Smith", spans[0].Text)
	assert.Equal(t, "DOB 01/02/1980", spans[1].Text)
	assert.Equal(t, document.SourceNative, spans[0].Source)

	// Reading order: first span sits higher on the page (smaller Y0 in
	// top-left coordinates).
	assert.Less(t, spans[0].BBox.Y0, spans[1].BBox.Y0)

	// Line box covers all fragments.
	assert.InDelta(t, 72, spans[0].BBox.X0, 0.01)
	assert.InDelta(t, 174, spans[0].BBox.X1, 0.01)
}

func TestSpansFromTextsUnorderedInput(t *testing.T) {
	texts := []pdf.Text{
		{S: "second", X: 72, Y: 600, W: 30, FontSize: 10},
		{S: "first", X: 72, Y: 700, W: 30, FontSize: 10},
	}
	spans := spansFromTexts(texts, 2, 792)
	require.Len(t, spans, 2)
	assert.Equal(t, "first", spans[0].Text)
	assert.Equal(t, "second", spans[1].Text)
	assert.Equal(t, 2, spans[0].PageIndex)
}

func TestSpansFromOCRLines(t *testing.T) {
	scale := 300.0 / 72.0
	lines := []OCRLine{
		{Text: "John Smith", BBox: image.Rect(300, 400, 900, 460), Confidence: 91.5},
		{Text: "   ", BBox: image.Rect(0, 0, 10, 10)},
	}

	spans := spansFromOCRLines(lines, 1, scale, 612, 792)
	require.Len(t, spans, 1, "blank lines are dropped")

	span := spans[0]
	assert.Equal(t, "John Smith", span.Text)
	assert.Equal(t, document.SourceOCR, span.Source)
	assert.Equal(t, 1, span.PageIndex)
	assert.InDelta(t, 91.5, span.Confidence, 0.001)

	// Pixel coordinates divided by the raster scale.
	assert.InDelta(t, 72, span.BBox.X0, 0.01)
	assert.InDelta(t, 96, span.BBox.Y0, 0.01)
	assert.InDelta(t, 216, span.BBox.X1, 0.01)
	assert.InDelta(t, 110.4, span.BBox.Y1, 0.01)
}

func TestSpansFromOCRLinesClipsToPage(t *testing.T) {
	spans := spansFromOCRLines([]OCRLine{
		{Text: "edge", BBox: image.Rect(-10, -10, 5000, 5000)},
	}, 0, 300.0/72.0, 612, 792)
	require.Len(t, spans, 1)
	assert.Equal(t, document.BoundingBox{X0: 0, Y0: 0, X1: 612, Y1: 792}, spans[0].BBox)
}

func TestParseHOCR(t *testing.T) {
	hocr := `<?xml version="1.0" encoding="UTF-8"?>
<html><body>
 <div class='ocr_page' title='image "page.png"; bbox 0 0 2550 3300'>
  <div class='ocr_carea' title="bbox 300 400 1200 500">
   <p class='ocr_par'>
    <span class='ocr_line' title="bbox 300 400 1200 470; baseline 0 -10">
     <span class='ocrx_word' title='bbox 300 400 640 470; x_wconf 96'>John</span>
     <span class='ocrx_word' title='bbox 660 400 1200 470; x_wconf 88'>Smith</span>
    </span>
    <span class='ocr_line' title="bbox 300 520 800 580">
     <span class='ocrx_word' title='bbox 300 520 800 580; x_wconf 42'>Dx:</span>
    </span>
   </p>
  </div>
 </div>
</body></html>`

	lines, err := parseHOCR(hocr)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "John Smith", lines[0].Text)
	assert.Equal(t, image.Rect(300, 400, 1200, 470), lines[0].BBox)
	assert.InDelta(t, 92, lines[0].Confidence, 0.001)

	assert.Equal(t, "Dx:", lines[1].Text)
	assert.InDelta(t, 42, lines[1].Confidence, 0.001)
}

func TestParseHOCREmpty(t *testing.T) {
	lines, err := parseHOCR("<html><body></body></html>")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTitleBBox(t *testing.T) {
	bbox, ok := titleBBox("bbox 1 2 3 4; x_wconf 90")
	require.True(t, ok)
	assert.Equal(t, image.Rect(1, 2, 3, 4), bbox)

	_, ok = titleBBox("x_wconf 90")
	assert.False(t, ok)

	_, ok = titleBBox("bbox 1 2 three 4")
	assert.False(t, ok)
}
