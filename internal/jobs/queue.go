// Package jobs provides asynchronous document processing: a queue
// abstraction with in-memory and SQS backends, durable job status records,
// and the worker pool that drains the queue through the pipeline.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Payload describes one queued de-identification request. Document bytes
// never ride the queue; workers fetch them from storage by file ID.
type Payload struct {
	JobID     string `json:"job_id"`
	FileID    string `json:"file_id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	Mode      string `json:"mode"`
	Threshold int    `json:"threshold"`
}

func encodePayload(p Payload) (Payload, string, error) {
	if p.JobID == "" {
		p.JobID = uuid.NewString()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return Payload{}, "", fmt.Errorf("jobs: encode payload: %w", err)
	}
	return p, string(body), nil
}

func decodePayload(body string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Payload{}, fmt.Errorf("jobs: decode payload: %w", err)
	}
	if p.JobID == "" || p.FileID == "" {
		return Payload{}, fmt.Errorf("jobs: payload missing job or file id")
	}
	return p, nil
}
