package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/pipeline"
	"github.com/openphi/deidentify/internal/storage"
	"github.com/openphi/deidentify/pkg/logging"
)

const (
	receiveBatchSize   = 5
	receiveWaitSeconds = 10
)

// Processor runs one de-identification request end to end. *pipeline.Pipeline
// satisfies it.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Worker drains the job queue through the pipeline: fetch the original from
// storage, process, persist the redacted artifact and report, then settle the
// job record. One Worker runs a pool of goroutines.
type Worker struct {
	queue       queueClient
	jobs        Store
	artifacts   storage.Store
	processor   Processor
	concurrency int
	logger      *logging.Logger
}

// NewWorker builds a worker pool. concurrency below 1 is raised to 1.
func NewWorker(queue queueClient, jobs Store, artifacts storage.Store, processor Processor, concurrency int, logger *logging.Logger) *Worker {
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if jobs == nil {
		panic("jobs: job store cannot be nil")
	}
	if artifacts == nil {
		panic("jobs: artifact store cannot be nil")
	}
	if processor == nil {
		panic("jobs: processor cannot be nil")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:       queue,
		jobs:        jobs,
		artifacts:   artifacts,
		processor:   processor,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run starts the pool and blocks until ctx is cancelled and all goroutines
// have drained their in-flight work.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, receiveBatchSize, receiveWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("receive failed", "error", err)
			continue
		}

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	payload, err := decodePayload(msg.Body)
	if err != nil {
		// Malformed bodies can never succeed; drop them.
		w.logger.Error("dropping malformed job message", "message_id", msg.ID, "error", err)
		_ = w.queue.Delete(ctx, msg.ReceiptHandle)
		return
	}

	log := w.logger.With("job_id", payload.JobID, "file_id", payload.FileID)

	if err := w.processJob(ctx, payload); err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-job; leave the message for redelivery.
			return
		}
		log.Error("job failed", "error", err)
		if markErr := w.jobs.MarkFailed(ctx, payload.JobID, err.Error()); markErr != nil {
			log.Error("failed to mark job failed", "error", markErr)
		}
	} else {
		log.Info("job completed")
	}

	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		log.Error("failed to delete message", "error", err)
	}
}

func (w *Worker) processJob(ctx context.Context, payload Payload) error {
	data, err := w.artifacts.Get(ctx, storage.OriginalKey(payload.FileID))
	if err != nil {
		return err
	}

	mode, err := document.ParseMode(payload.Mode)
	if err != nil {
		return err
	}

	result, err := w.processor.Process(ctx, pipeline.Request{
		FileID:    payload.FileID,
		Filename:  payload.Filename,
		Data:      data,
		MimeType:  payload.MimeType,
		Mode:      mode,
		Threshold: payload.Threshold,
	})
	if err != nil {
		return err
	}

	if err := w.artifacts.Put(ctx, storage.RedactedKey(payload.FileID), result.Redacted, "application/pdf"); err != nil {
		return err
	}

	reportJSON, err := json.Marshal(result.Report)
	if err != nil {
		return err
	}
	if err := w.artifacts.Put(ctx, storage.ReportKey(payload.FileID), reportJSON, "application/json"); err != nil {
		return err
	}

	return w.jobs.MarkCompleted(ctx, payload.JobID, &result.Report)
}
