// Package audit provides the immutable processing audit trail required for
// PHI handling. Events record that a document passed through the system,
// never the PHI itself.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventDocumentReceived is logged when a document enters the system.
	EventDocumentReceived EventType = "deidentify.document_received"
	// EventDocumentCompleted is logged when de-identification succeeds.
	EventDocumentCompleted EventType = "deidentify.document_completed"
	// EventDocumentFailed is logged when de-identification fails.
	EventDocumentFailed EventType = "deidentify.document_failed"
	// EventDocumentDownloaded is logged when a redacted artifact is served.
	EventDocumentDownloaded EventType = "deidentify.document_downloaded"
)

// Event is an immutable audit record. Details never contain document text
// or PHI values, only counts and category names.
type Event struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	FileID    string          `json:"file_id"`
	JobID     string          `json:"job_id,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Details contains event-specific fields.
type Details struct {
	// For completed documents
	TotalPages     int     `json:"total_pages,omitempty"`
	TotalFindings  int     `json:"total_findings,omitempty"`
	TotalRedacted  int     `json:"total_redacted,omitempty"`
	Unlocated      int     `json:"unlocated,omitempty"`
	BelowThreshold int     `json:"below_threshold,omitempty"`
	DurationSecs   float64 `json:"duration_secs,omitempty"`

	// For failed documents
	FailureReason string `json:"failure_reason,omitempty"`

	// For received documents
	SizeBytes int64 `json:"size_bytes,omitempty"`
}

// Service writes and queries audit events.
type Service struct {
	db *sql.DB
}

// NewService creates an audit service over the given database handle.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent records an audit event.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO deidentify_audit_events (
			id, event_type, file_id, job_id, filename, mode, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.FileID,
		nullString(event.JobID),
		nullString(event.Filename),
		nullString(event.Mode),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}

	return nil
}

// LogDocumentReceived records a document entering the system.
func (s *Service) LogDocumentReceived(ctx context.Context, fileID, jobID, filename, mode string, sizeBytes int64) error {
	detailsJSON, _ := json.Marshal(Details{SizeBytes: sizeBytes})

	return s.LogEvent(ctx, Event{
		EventType: EventDocumentReceived,
		FileID:    fileID,
		JobID:     jobID,
		Filename:  filename,
		Mode:      mode,
		Details:   detailsJSON,
	})
}

// LogDocumentCompleted records a successful run with its report counts.
func (s *Service) LogDocumentCompleted(ctx context.Context, fileID, jobID, filename, mode string, d Details) error {
	detailsJSON, _ := json.Marshal(d)

	return s.LogEvent(ctx, Event{
		EventType: EventDocumentCompleted,
		FileID:    fileID,
		JobID:     jobID,
		Filename:  filename,
		Mode:      mode,
		Details:   detailsJSON,
	})
}

// LogDocumentFailed records a failed run. The reason is an error class, not
// document content.
func (s *Service) LogDocumentFailed(ctx context.Context, fileID, jobID, filename, mode, reason string) error {
	detailsJSON, _ := json.Marshal(Details{FailureReason: reason})

	return s.LogEvent(ctx, Event{
		EventType: EventDocumentFailed,
		FileID:    fileID,
		JobID:     jobID,
		Filename:  filename,
		Mode:      mode,
		Details:   detailsJSON,
	})
}

// LogDocumentDownloaded records a redacted artifact being served.
func (s *Service) LogDocumentDownloaded(ctx context.Context, fileID string) error {
	return s.LogEvent(ctx, Event{
		EventType: EventDocumentDownloaded,
		FileID:    fileID,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, event_type, file_id, job_id, filename, mode, details, created_at
		FROM deidentify_audit_events
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1

	if filter.FileID != "" {
		query += fmt.Sprintf(" AND file_id = $%d", argIdx)
		args = append(args, filter.FileID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var jobID, filename, mode sql.NullString
		err := rows.Scan(
			&e.ID, &e.EventType, &e.FileID, &jobID, &filename, &mode,
			&e.Details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.JobID = jobID.String
		e.Filename = filename.String
		e.Mode = mode.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate events: %w", err)
	}

	return events, nil
}

// Filter specifies criteria for querying audit events.
type Filter struct {
	FileID    string
	EventType EventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
