package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// OCRLine is one recognized text line with its raster-pixel geometry.
type OCRLine struct {
	Text string
	BBox image.Rectangle
	// Confidence is the mean word confidence in [0,100].
	Confidence float64
}

// OCREngine recognizes text lines in a raster image. Implementations must
// be safe for concurrent use across documents.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) ([]OCRLine, error)
}

// TesseractEngine runs Tesseract over page rasters and reads line geometry
// from its hOCR output.
type TesseractEngine struct {
	language string
}

// NewTesseractEngine creates a Tesseract-backed OCR engine. Language
// defaults to English.
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{language: language}
}

// Available reports whether a Tesseract installation can be reached.
func (e *TesseractEngine) Available() bool {
	langs, err := gosseract.GetAvailableLanguages()
	return err == nil && len(langs) > 0
}

// Recognize OCRs the image and returns line-level results. A fresh client
// is created per call; gosseract clients are not goroutine safe.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]OCRLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("extract: encode raster: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return nil, fmt.Errorf("extract: set ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("extract: load raster into ocr: %w", err)
	}

	hocr, err := client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("extract: ocr recognition: %w", err)
	}
	return parseHOCR(hocr)
}
