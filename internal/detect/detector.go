// Package detect calls an external LLM classifier to find PHI in extracted
// document text. Providers are interchangeable behind the Detector
// interface; the pipeline never trusts classifier geometry, only literals.
package detect

import (
	"context"
	"errors"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
)

// ErrClassifier marks a classifier failure that exhausted retries. The
// document-level request fails; no partial redaction is returned.
var ErrClassifier = errors.New("detect: classifier failure")

// Detector is the classifier boundary: full page-tagged document text in,
// findings out. Implementations are safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, pages []document.Page, defs []phi.CategoryDefinition) ([]document.Finding, error)
}
