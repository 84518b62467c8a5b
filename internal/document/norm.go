package document

import "strings"

// NormalizeText lowercases s and collapses all runs of whitespace into
// single spaces. Matching and synthetic-replacement caching both key on
// this normal form so that OCR line breaks and case differences do not
// split identical literals.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
