package report

import (
	"sync"
	"time"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
)

// defaultHistorySize bounds the recent-upload history.
const defaultHistorySize = 10

// RecentUpload is one entry in the dashboard's bounded history.
type RecentUpload struct {
	FileID      string        `json:"file_id"`
	Filename    string        `json:"filename"`
	Mode        document.Mode `json:"mode"`
	Findings    int           `json:"findings"`
	Redacted    int           `json:"redacted"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Snapshot is a point-in-time copy of the dashboard, safe to serialize
// without holding the lock.
type Snapshot struct {
	TotalDocuments int                  `json:"total_documents"`
	TotalFindings  int                  `json:"total_findings"`
	TotalRedacted  int                  `json:"total_redacted"`
	TotalPages     int                  `json:"total_pages"`
	OCRPages       int                  `json:"ocr_pages"`
	Categories     map[phi.Category]int `json:"categories"`
	Recent         []RecentUpload       `json:"recent_uploads"`
}

// Dashboard accumulates statistics across all completed documents in the
// process. Merges are serialized by a single mutex; failed documents never
// reach Merge.
type Dashboard struct {
	mu sync.Mutex

	totalDocuments int
	totalFindings  int
	totalRedacted  int
	totalPages     int
	ocrPages       int
	categories     map[phi.Category]int
	// recent is ordered most-recent-first and capped at historySize.
	recent      []RecentUpload
	historySize int
}

// NewDashboard creates an empty dashboard. historySize <= 0 uses the
// default capacity.
func NewDashboard(historySize int) *Dashboard {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Dashboard{
		categories:  make(map[phi.Category]int),
		historySize: historySize,
	}
}

// Merge folds one completed document's report into the running totals. The
// whole merge is one critical section so concurrent documents never tear
// the aggregate counts.
func (d *Dashboard) Merge(r document.RedactionReport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.totalDocuments++
	d.totalFindings += r.TotalFindings
	d.totalRedacted += r.TotalRedacted
	d.totalPages += r.TotalPages
	d.ocrPages += r.OCRPages
	for _, c := range r.Categories {
		d.categories[c.Category] += c.Count
	}

	entry := RecentUpload{
		FileID:      r.FileID,
		Filename:    r.Filename,
		Mode:        r.Mode,
		Findings:    r.TotalFindings,
		Redacted:    r.TotalRedacted,
		CompletedAt: r.CompletedAt,
	}
	d.recent = append([]RecentUpload{entry}, d.recent...)
	if len(d.recent) > d.historySize {
		d.recent = d.recent[:d.historySize]
	}
}

// Snapshot copies the current state under the lock.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	categories := make(map[phi.Category]int, len(d.categories))
	for k, v := range d.categories {
		categories[k] = v
	}
	recent := make([]RecentUpload, len(d.recent))
	copy(recent, d.recent)

	return Snapshot{
		TotalDocuments: d.totalDocuments,
		TotalFindings:  d.totalFindings,
		TotalRedacted:  d.totalRedacted,
		TotalPages:     d.totalPages,
		OCRPages:       d.ocrPages,
		Categories:     categories,
		Recent:         recent,
	}
}
