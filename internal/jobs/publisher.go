package jobs

import (
	"context"
	"fmt"

	"github.com/openphi/deidentify/internal/document"
)

// Publisher records a pending job and enqueues it for a worker. The
// document bytes must already be in storage under the payload's file ID.
type Publisher struct {
	queue queueClient
	store Store
}

// NewPublisher builds a publisher over the given queue and job store.
func NewPublisher(queue queueClient, store Store) *Publisher {
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if store == nil {
		panic("jobs: store cannot be nil")
	}
	return &Publisher{queue: queue, store: store}
}

// Publish persists a pending job record and enqueues the payload,
// returning the job ID. A missing JobID is assigned.
func (p *Publisher) Publish(ctx context.Context, payload Payload, mode document.Mode, threshold int) (string, error) {
	payload.Mode = string(mode)
	payload.Threshold = threshold

	payload, body, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	record := &JobRecord{
		JobID:     payload.JobID,
		FileID:    payload.FileID,
		Filename:  payload.Filename,
		Mode:      payload.Mode,
		Threshold: payload.Threshold,
	}
	if err := p.store.PutPending(ctx, record); err != nil {
		return "", fmt.Errorf("jobs: publish: %w", err)
	}

	if err := p.queue.Send(ctx, body); err != nil {
		// The record stays pending; a reaper or TTL cleans it up.
		return "", fmt.Errorf("jobs: publish: %w", err)
	}
	return payload.JobID, nil
}
