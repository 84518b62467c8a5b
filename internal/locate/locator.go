// Package locate reconciles classifier findings against extracted text
// spans, producing geometry-bearing redaction targets. The classifier's own
// geometry is never trusted; every box is re-derived here.
package locate

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/openphi/deidentify/internal/document"
)

// Locator matches finding literals to text spans. Exact containment on
// normalized text is tried first; OCR noise is absorbed by a bounded
// edit-distance fallback.
type Locator struct {
	// fuzzyDivisor sets the edit-distance tolerance: one edit allowed per
	// fuzzyDivisor characters of the needle, rounded up.
	fuzzyDivisor int
	// minFuzzyLen disables fuzzy matching for very short literals, which
	// would otherwise match almost anything.
	minFuzzyLen int
}

// Option customizes matching tolerances. The defaults are part of the
// pipeline's observable behavior; tests pin them.
type Option func(*Locator)

// WithFuzzyDivisor sets how many needle characters earn one allowed edit.
func WithFuzzyDivisor(n int) Option {
	return func(l *Locator) {
		if n > 0 {
			l.fuzzyDivisor = n
		}
	}
}

// New creates a Locator with default tolerances: one edit per 8 characters,
// no fuzzy matching below 4 characters.
func New(opts ...Option) *Locator {
	l := &Locator{
		fuzzyDivisor: 8,
		minFuzzyLen:  4,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result separates located targets from findings that matched nothing.
// Unlocated findings stay in the report for audit but are never redacted.
type Result struct {
	Targets   []document.LocatedTarget
	Unlocated []document.Finding
}

// Locate resolves every finding against the document's pages. Each matching
// occurrence becomes its own target, so repeated literals are all redacted.
// Overlapping targets from distinct findings are all kept; the renderer
// draws the union rather than under-redacting.
func (l *Locator) Locate(pages []document.Page, findings []document.Finding) Result {
	var res Result
	for _, f := range findings {
		targets := l.locateFinding(pages, f)
		if len(targets) == 0 {
			res.Unlocated = append(res.Unlocated, f)
			continue
		}
		res.Targets = append(res.Targets, targets...)
	}
	return res
}

func (l *Locator) locateFinding(pages []document.Page, f document.Finding) []document.LocatedTarget {
	needle := document.NormalizeText(f.Text)
	if needle == "" {
		return nil
	}

	candidates := pages
	if f.PageHint >= 0 && f.PageHint < len(pages) {
		candidates = pages[f.PageHint : f.PageHint+1]
	}

	targets := l.matchPages(candidates, f, needle, false)
	if len(targets) == 0 {
		targets = l.matchPages(candidates, f, needle, true)
	}
	// A hinted finding that matched nothing on its page is retried across
	// the whole document; OCR page numbering can drift.
	if len(targets) == 0 && len(candidates) != len(pages) {
		targets = l.matchPages(pages, f, needle, false)
		if len(targets) == 0 {
			targets = l.matchPages(pages, f, needle, true)
		}
	}
	return targets
}

func (l *Locator) matchPages(pages []document.Page, f document.Finding, needle string, fuzzy bool) []document.LocatedTarget {
	var targets []document.LocatedTarget
	for _, page := range pages {
		for _, span := range page.Spans {
			var matches []match
			if fuzzy {
				matches = l.fuzzyMatches(span.Text, needle)
			} else {
				matches = exactMatches(span.Text, needle)
			}
			for _, m := range matches {
				bbox := sliceBox(span.BBox, m.start, m.end, m.total).Clip(page.Width, page.Height)
				targets = append(targets, document.LocatedTarget{
					Finding:     f,
					PageIndex:   page.Index,
					BBox:        bbox,
					Occurrence:  len(targets),
					MatchedText: m.text,
				})
			}
		}
	}
	return targets
}

// match records a hit inside a span's normalized text: the rune range it
// covers and the normalized length of the whole span, used to slice the
// span's box proportionally.
type match struct {
	start, end, total int
	text              string
}

func exactMatches(spanText, needle string) []match {
	hay := document.NormalizeText(spanText)
	if hay == "" {
		return nil
	}
	total := len([]rune(hay))

	var matches []match
	offset := 0
	for {
		idx := strings.Index(hay[byteIndex(hay, offset):], needle)
		if idx < 0 {
			break
		}
		start := offset + len([]rune(hay[byteIndex(hay, offset):][:idx]))
		end := start + len([]rune(needle))
		matches = append(matches, match{start: start, end: end, total: total, text: needle})
		offset = start + 1
		if offset >= total {
			break
		}
	}
	return matches
}

// fuzzyMatches slides a window of as many words as the needle across the
// span and accepts windows within the edit-distance budget.
func (l *Locator) fuzzyMatches(spanText, needle string) []match {
	if len([]rune(needle)) < l.minFuzzyLen {
		return nil
	}

	hay := document.NormalizeText(spanText)
	if hay == "" {
		return nil
	}
	total := len([]rune(hay))
	budget := (len([]rune(needle)) + l.fuzzyDivisor - 1) / l.fuzzyDivisor

	needleWords := len(strings.Fields(needle))
	hayWords := strings.Fields(hay)
	if needleWords == 0 || len(hayWords) < needleWords {
		return nil
	}

	var matches []match
	pos := 0 // rune offset of the current window start within hay
	for i := 0; i+needleWords <= len(hayWords); i++ {
		window := strings.Join(hayWords[i:i+needleWords], " ")
		if dist := levenshtein.ComputeDistance(window, needle); dist <= budget {
			start := pos
			end := start + len([]rune(window))
			matches = append(matches, match{start: start, end: end, total: total, text: window})
		}
		pos += len([]rune(hayWords[i])) + 1
	}
	return matches
}

// sliceBox cuts the horizontal slice of box covering runes [start,end) of a
// text that is total runes long. Vertical extent is kept: a match never
// shrinks below the line height.
func sliceBox(box document.BoundingBox, start, end, total int) document.BoundingBox {
	if total <= 0 || (start == 0 && end >= total) {
		return box
	}
	width := box.Width()
	return document.BoundingBox{
		X0: box.X0 + width*float64(start)/float64(total),
		Y0: box.Y0,
		X1: box.X0 + width*float64(end)/float64(total),
		Y1: box.Y1,
	}
}

// byteIndex converts a rune offset into a byte offset within s.
func byteIndex(s string, runeOffset int) int {
	if runeOffset <= 0 {
		return 0
	}
	for i := range s {
		if runeOffset == 0 {
			return i
		}
		runeOffset--
	}
	return len(s)
}
