package redact

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// PDFSource adapts a PDF held in memory to the PageSource interface.
type PDFSource struct {
	fz *fitz.Document
}

// OpenPDF opens document bytes for rendering. Callers must Close.
func OpenPDF(data []byte) (*PDFSource, error) {
	fz, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("redact: open document: %w", err)
	}
	return &PDFSource{fz: fz}, nil
}

func (s *PDFSource) Close() {
	if s.fz != nil {
		s.fz.Close()
	}
}

func (s *PDFSource) NumPages() int { return s.fz.NumPage() }

func (s *PDFSource) PageSize(index int) (width, height float64) {
	bound, err := s.fz.Bound(index)
	if err != nil || bound.Dx() <= 0 || bound.Dy() <= 0 {
		return 612, 792
	}
	return float64(bound.Dx()), float64(bound.Dy())
}

func (s *PDFSource) Raster(index int, dpi float64) (image.Image, error) {
	return s.fz.ImageDPI(index, dpi)
}
