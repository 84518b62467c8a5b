// Package document holds the data model shared by the de-identification
// pipeline stages: extracted page geometry, classifier findings, located
// redaction targets, and the per-document report.
package document

import (
	"time"

	"github.com/openphi/deidentify/internal/phi"
)

// SpanSource records which extraction path produced a text span.
type SpanSource string

const (
	SourceNative SpanSource = "native"
	SourceOCR    SpanSource = "ocr"
)

// BoundingBox is an axis-aligned rectangle in page coordinates (PDF points,
// origin top-left).
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.Y1 - b.Y0 }

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	out := b
	if other.X0 < out.X0 {
		out.X0 = other.X0
	}
	if other.Y0 < out.Y0 {
		out.Y0 = other.Y0
	}
	if other.X1 > out.X1 {
		out.X1 = other.X1
	}
	if other.Y1 > out.Y1 {
		out.Y1 = other.Y1
	}
	return out
}

// Clip constrains the box to the page dimensions.
func (b BoundingBox) Clip(width, height float64) BoundingBox {
	out := b
	if out.X0 < 0 {
		out.X0 = 0
	}
	if out.Y0 < 0 {
		out.Y0 = 0
	}
	if out.X1 > width {
		out.X1 = width
	}
	if out.Y1 > height {
		out.Y1 = height
	}
	return out
}

// Page describes one document page and how its text was obtained.
type Page struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// OCR is true when the page text came from the raster/OCR path.
	OCR bool `json:"ocr"`
	// Scale is raster pixels per page point, set only when OCR was used.
	Scale float64 `json:"scale,omitempty"`
	// Spans are the page's text spans in reading order.
	Spans []TextSpan `json:"spans"`
}

// Text joins the page's spans in reading order.
func (p Page) Text() string {
	var out string
	for i, span := range p.Spans {
		if i > 0 {
			out += "\n"
		}
		out += span.Text
	}
	return out
}

// TextSpan is a run of text with resolved page geometry.
type TextSpan struct {
	PageIndex int         `json:"page_index"`
	Text      string      `json:"text"`
	BBox      BoundingBox `json:"bbox"`
	Source    SpanSource  `json:"source"`
	// Confidence is the OCR word confidence in [0,100]; only meaningful
	// when Source is SourceOCR.
	Confidence float64 `json:"confidence,omitempty"`
}

// Finding is a classifier claim that a literal text string is PHI.
// Findings carry no geometry; the locator re-derives it.
type Finding struct {
	ID          string       `json:"id"`
	Category    phi.Category `json:"category"`
	Subcategory string       `json:"subcategory"`
	Text        string       `json:"text"`
	// PageHint is the page the classifier saw the text on, or -1.
	PageHint   int    `json:"page_hint"`
	Confidence int    `json:"confidence"`
	Rationale  string `json:"rationale,omitempty"`
}

// LocatedTarget binds a Finding to concrete page geometry. One finding may
// produce several targets: one per matching occurrence.
type LocatedTarget struct {
	Finding    Finding     `json:"finding"`
	PageIndex  int         `json:"page_index"`
	BBox       BoundingBox `json:"bbox"`
	Occurrence int         `json:"occurrence"`
	// MatchedText is the span text the finding matched against, which may
	// differ from the finding literal under OCR noise.
	MatchedText string `json:"matched_text"`
	// Replacement is the text drawn over the box; empty in mask mode.
	Replacement string `json:"replacement,omitempty"`
}

// CategoryCount summarizes findings of one category in a report.
type CategoryCount struct {
	Category phi.Category `json:"category"`
	Count    int          `json:"count"`
	// Examples holds up to three truncated literals for audit display.
	Examples []string `json:"examples,omitempty"`
}

// RedactionReport is the per-document audit summary.
type RedactionReport struct {
	FileID         string          `json:"file_id"`
	Filename       string          `json:"filename"`
	Mode           Mode            `json:"deidentification_mode"`
	TotalPages     int             `json:"total_pages"`
	OCRPages       int             `json:"ocr_pages"`
	TotalFindings  int             `json:"total_findings"`
	TotalRedacted  int             `json:"total_redacted"`
	Unlocated      int             `json:"unlocated_findings"`
	BelowThreshold int             `json:"below_threshold_findings"`
	Categories     []CategoryCount `json:"categories_found"`
	Duration       time.Duration   `json:"-"`
	DurationSecs   float64         `json:"processing_time_seconds"`
	CompletedAt    time.Time       `json:"completed_at"`
}
