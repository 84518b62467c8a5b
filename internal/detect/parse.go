package detect

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
)

// parseFindings validates the classifier's JSON output against the document.
// Hallucinated literals (text absent from the document), unknown categories,
// and out-of-range confidences are all normalized away here so downstream
// stages can trust every Finding.
func parseFindings(raw string, pages []document.Page) ([]document.Finding, error) {
	body := jsonBody(raw)
	if !gjson.Valid(body) {
		return nil, errors.New("detect: classifier returned invalid json")
	}

	docText := normalizedDocText(pages)

	var findings []document.Finding
	gjson.Get(body, "findings").ForEach(func(_, item gjson.Result) bool {
		text := item.Get("text").String()
		category := phi.Category(item.Get("category").String())

		if strings.TrimSpace(text) == "" || !category.Valid() {
			return true
		}
		// The locator can only redact text that exists; drop hallucinations.
		if !strings.Contains(docText, document.NormalizeText(text)) {
			return true
		}

		findings = append(findings, document.Finding{
			ID:          uuid.NewString(),
			Category:    category,
			Subcategory: item.Get("subcategory").String(),
			Text:        text,
			PageHint:    pageHint(item.Get("page"), len(pages)),
			Confidence:  clampConfidence(item.Get("confidence")),
			Rationale:   item.Get("rationale").String(),
		})
		return true
	})
	return findings, nil
}

func normalizedDocText(pages []document.Page) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(page.Text())
		b.WriteString("\n")
	}
	return document.NormalizeText(b.String())
}

// jsonBody strips markdown code fences some models wrap around JSON.
func jsonBody(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}
	return strings.TrimSpace(raw)
}

// pageHint converts the classifier's 1-based page number to a 0-based index,
// or -1 when absent or out of range.
func pageHint(v gjson.Result, numPages int) int {
	if !v.Exists() {
		return -1
	}
	page := int(v.Int()) - 1
	if page < 0 || page >= numPages {
		return -1
	}
	return page
}

// clampConfidence normalizes confidence to [0,100]. Fractional values in
// (0,1] are treated as probabilities and scaled up; a missing value gets a
// conservative default.
func clampConfidence(v gjson.Result) int {
	if !v.Exists() {
		return 80
	}
	f := v.Float()
	if f > 0 && f <= 1 {
		f *= 100
	}
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(f)
}
