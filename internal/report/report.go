// Package report builds per-document redaction reports and aggregates them
// into the process-wide dashboard.
package report

import (
	"sort"
	"time"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
)

const (
	// maxExamples caps the audit examples kept per category.
	maxExamples = 3
	// exampleRunes truncates long literals in audit examples.
	exampleRunes = 40
)

// Input carries everything the builder needs from a completed pipeline run.
type Input struct {
	FileID    string
	Filename  string
	Mode      document.Mode
	Pages     []document.Page
	Findings  []document.Finding
	Rendered  []document.LocatedTarget
	Unlocated []document.Finding
	// BelowThreshold are findings gated out by the confidence threshold.
	BelowThreshold []document.Finding
	Started        time.Time
	Completed      time.Time
}

// Build assembles the per-document report. Total findings count every
// classifier claim; total redacted counts only located, above-threshold
// findings. Occurrence counts are deliberately not part of either number.
func Build(in Input) document.RedactionReport {
	duration := in.Completed.Sub(in.Started)

	ocrPages := 0
	for _, page := range in.Pages {
		if page.OCR {
			ocrPages++
		}
	}

	redactedFindings := make(map[string]struct{})
	for _, t := range in.Rendered {
		redactedFindings[t.Finding.ID] = struct{}{}
	}

	return document.RedactionReport{
		FileID:         in.FileID,
		Filename:       in.Filename,
		Mode:           in.Mode,
		TotalPages:     len(in.Pages),
		OCRPages:       ocrPages,
		TotalFindings:  len(in.Findings),
		TotalRedacted:  len(redactedFindings),
		Unlocated:      len(in.Unlocated),
		BelowThreshold: len(in.BelowThreshold),
		Categories:     categoryCounts(in.Findings),
		Duration:       duration,
		DurationSecs:   duration.Seconds(),
		CompletedAt:    in.Completed,
	}
}

// categoryCounts tallies findings per category with up to three truncated
// example literals each, ordered by count descending then category name.
func categoryCounts(findings []document.Finding) []document.CategoryCount {
	byCategory := make(map[phi.Category]*document.CategoryCount)
	for _, f := range findings {
		entry, ok := byCategory[f.Category]
		if !ok {
			entry = &document.CategoryCount{Category: f.Category}
			byCategory[f.Category] = entry
		}
		entry.Count++
		if len(entry.Examples) < maxExamples {
			entry.Examples = append(entry.Examples, truncate(f.Text, exampleRunes))
		}
	}

	counts := make([]document.CategoryCount, 0, len(byCategory))
	for _, entry := range byCategory {
		counts = append(counts, *entry)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Category < counts[j].Category
	})
	return counts
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
