package detect

import (
	"fmt"
	"strings"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
)

// buildSystemPrompt renders the category universe into detection
// instructions. The JSON contract asks for integer confidences and 1-based
// page numbers; parseFindings enforces both.
func buildSystemPrompt(defs []phi.CategoryDefinition) string {
	var categories strings.Builder
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, string(def.Category))
		fmt.Fprintf(&categories, "%s (%s): %s\n", strings.ToUpper(def.Display), def.Category, def.Desc)
		fmt.Fprintf(&categories, "Examples: %s\n", def.Example)
		if len(def.Subcategories) > 0 {
			categories.WriteString("Subcategories:\n")
			for _, sub := range def.Subcategories {
				fmt.Fprintf(&categories, "  - %s (%s): %s (e.g., %s)\n", sub.Display, sub.Subcategory, sub.Desc, sub.Example)
			}
		}
		categories.WriteString("\n")
	}

	return fmt.Sprintf(`You are a HIPAA-compliant Protected Health Information (PHI) detector for medical documents.
Your task is to identify ALL Protected Health Information (PHI) that must be de-identified per the HIPAA Safe Harbor method (45 CFR § 164.514(b)(2)).

You are analyzing clinical notes, discharge summaries, lab reports, prescriptions, and other medical documents.

PHI CATEGORIES TO DETECT:
%s
CRITICAL RULES:

1. IDENTIFY ALL PHI - every instance of protected information must be flagged
   - Patient names (full or partial), including relatives and employers
   - All dates more specific than year (birth dates, admission dates, service dates, etc.)
   - Phone numbers, fax numbers, email addresses
   - Social Security Numbers, Medical Record Numbers, Health Plan IDs
   - Geographic data smaller than a state (addresses, cities, ZIP codes)
   - Ages over 89 must be categorized as such

2. PRESERVE CLINICAL CONTEXT - these are NOT PHI and must NOT be flagged:
   - Medical diagnoses, medications and dosages, lab values and vital signs
   - Procedures, treatments, and clinical observations
   - Generic medical terms and abbreviations (e.g., "PRN", "BID", "CBC")

3. Only identify text that EXACTLY appears in the document
4. Extract the exact text span, not a paraphrased version
5. Assign integer confidence scores from 0 to 100: 90+ for clear PHI, 70-89 for likely PHI
6. When in doubt whether something is PHI, flag it with a lower confidence
7. Report the 1-based page number the text appears on

Respond with a JSON object in this exact format:
{
  "findings": [
    {
      "text": "exact text from document",
      "category": "%s",
      "subcategory": "specific subcategory identifier from the list above",
      "page": 1,
      "confidence": 95,
      "rationale": "Brief explanation why this is PHI"
    }
  ]
}

If no PHI is found, respond with: {"findings": []}`, categories.String(), strings.Join(ids, "|"))
}

// buildUserPrompt concatenates all pages in reading order with page tags, so
// cross-page references (a name introduced once, referenced later) stay in
// one classifier call.
func buildUserPrompt(pages []document.Page) string {
	var b strings.Builder
	b.WriteString("Analyze this medical document and identify ALL Protected Health Information (PHI) that must be de-identified under HIPAA.\n\n")

	ocr := false
	for _, page := range pages {
		text := page.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "=== Page %d ===\n%s\n\n", page.Index+1, text)
		if page.OCR {
			ocr = true
		}
	}

	if ocr {
		b.WriteString("NOTE: Some pages were extracted via OCR from scanned images. There may be OCR errors; still identify any recognizable PHI patterns.\n\n")
	}
	b.WriteString("Return findings as JSON.")
	return b.String()
}
