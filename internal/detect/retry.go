package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/pkg/logging"
)

// RetryingDetector retries a wrapped detector with exponential backoff.
// Exhausted retries wrap ErrClassifier so the pipeline fails the whole
// document rather than shipping a partial redaction.
type RetryingDetector struct {
	inner    Detector
	attempts int
	baseWait time.Duration
	logger   *logging.Logger
}

func NewRetryingDetector(inner Detector, attempts int, baseWait time.Duration, logger *logging.Logger) *RetryingDetector {
	if inner == nil {
		panic("detect: inner detector cannot be nil")
	}
	if attempts < 1 {
		attempts = 1
	}
	if baseWait <= 0 {
		baseWait = 2 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetryingDetector{inner: inner, attempts: attempts, baseWait: baseWait, logger: logger}
}

func (r *RetryingDetector) Detect(ctx context.Context, pages []document.Page, defs []phi.CategoryDefinition) ([]document.Finding, error) {
	var lastErr error
	wait := r.baseWait

	for attempt := 1; attempt <= r.attempts; attempt++ {
		findings, err := r.inner.Detect(ctx, pages, defs)
		if err == nil {
			return findings, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < r.attempts {
			r.logger.Warn("classifier attempt failed, retrying",
				"attempt", attempt,
				"wait", wait.String(),
				"error", err,
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			wait *= 2
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrClassifier, r.attempts, lastErr)
}
