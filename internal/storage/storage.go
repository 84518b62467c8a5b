// Package storage persists original and redacted document artifacts. The
// core pipeline imposes no persistence discipline; this is the durable layer
// behind the HTTP surface.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested artifact does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Store reads and writes artifacts by key. Implementations are safe for
// concurrent use.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Artifact key layout, shared by all backends.
func OriginalKey(fileID string) string { return fmt.Sprintf("%s/original.pdf", fileID) }
func RedactedKey(fileID string) string { return fmt.Sprintf("%s/redacted.pdf", fileID) }
func ReportKey(fileID string) string   { return fmt.Sprintf("%s/report.json", fileID) }
