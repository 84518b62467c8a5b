// Package pipeline orchestrates the de-identification stages: extraction,
// classification, locating, synthesis, redaction, and reporting. One Process
// call handles one document; calls are safe to run concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openphi/deidentify/internal/config"
	"github.com/openphi/deidentify/internal/detect"
	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/locate"
	"github.com/openphi/deidentify/internal/observability/metrics"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/internal/redact"
	"github.com/openphi/deidentify/internal/report"
	"github.com/openphi/deidentify/internal/synth"
	"github.com/openphi/deidentify/pkg/logging"
)

// ErrRender marks a redaction rendering failure. The whole document fails;
// a half-redacted artifact is never returned.
var ErrRender = errors.New("pipeline: rendering failed")

// Extractor is the text extraction stage.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) ([]document.Page, error)
}

// Redactor is the rendering stage.
type Redactor interface {
	Apply(ctx context.Context, src redact.PageSource, targets []document.LocatedTarget, mode document.Mode) ([]byte, error)
}

// Request is one document to de-identify. Mode and Threshold arrive
// pre-validated by the API layer.
type Request struct {
	FileID    string
	Filename  string
	Data      []byte
	MimeType  string
	Mode      document.Mode
	Threshold int
}

// Result is a completed run: the redacted bytes and the audit report.
type Result struct {
	Redacted []byte
	Report   document.RedactionReport
}

// Deps wires the pipeline's collaborators. Dashboard and Metrics may be nil.
type Deps struct {
	Extractor Extractor
	Detector  detect.Detector
	Locator   *locate.Locator
	Redactor  Redactor
	Dashboard *report.Dashboard
	// Definitions is the category universe sent to the classifier; nil
	// uses the Safe Harbor defaults.
	Definitions []phi.CategoryDefinition
	Metrics     *metrics.PipelineMetrics
	Logger      *logging.Logger
}

// Pipeline runs documents through all stages. The dashboard is only merged
// after a document fully completes, so abandoned or failed runs never skew
// the aggregate counts.
type Pipeline struct {
	extractor   Extractor
	detector    detect.Detector
	locator     *locate.Locator
	redactor    Redactor
	dashboard   *report.Dashboard
	definitions []phi.CategoryDefinition
	metrics     *metrics.PipelineMetrics
	tracer      trace.Tracer
	logger      *logging.Logger

	// openSource is swapped by tests to avoid needing real PDF bytes.
	openSource func(data []byte) (redact.PageSource, func(), error)
}

func New(deps Deps) *Pipeline {
	if deps.Extractor == nil {
		panic("pipeline: extractor cannot be nil")
	}
	if deps.Detector == nil {
		panic("pipeline: detector cannot be nil")
	}
	if deps.Locator == nil {
		panic("pipeline: locator cannot be nil")
	}
	if deps.Redactor == nil {
		panic("pipeline: redactor cannot be nil")
	}
	if deps.Definitions == nil {
		deps.Definitions = phi.Definitions()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Pipeline{
		extractor:   deps.Extractor,
		detector:    deps.Detector,
		locator:     deps.Locator,
		redactor:    deps.Redactor,
		dashboard:   deps.Dashboard,
		definitions: deps.Definitions,
		metrics:     deps.Metrics,
		tracer:      otel.Tracer("deidentify/pipeline"),
		logger:      deps.Logger,
		openSource: func(data []byte) (redact.PageSource, func(), error) {
			src, err := redact.OpenPDF(data)
			if err != nil {
				return nil, nil, err
			}
			return src, src.Close, nil
		},
	}
}

// Process runs one document end to end. On any fatal error no output is
// returned and the dashboard is left untouched.
func (p *Pipeline) Process(ctx context.Context, req Request) (Result, error) {
	started := time.Now()

	if err := validate(&req); err != nil {
		return Result{}, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("file_id", req.FileID),
		attribute.String("mode", string(req.Mode)),
		attribute.Int("threshold", req.Threshold),
	))
	defer span.End()

	res, err := p.process(ctx, req, started)
	if err != nil {
		span.RecordError(err)
		p.metrics.ObserveDocument("failed", string(req.Mode), time.Since(started).Seconds())
		return Result{}, err
	}

	p.metrics.ObserveDocument("completed", string(req.Mode), time.Since(started).Seconds())
	for _, c := range res.Report.Categories {
		p.metrics.ObserveFindings(string(c.Category), c.Count)
	}
	p.metrics.ObserveOCRPages(res.Report.OCRPages)
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, req Request, started time.Time) (Result, error) {
	ctx, extractSpan := p.tracer.Start(ctx, "pipeline.extract")
	pages, err := p.extractor.Extract(ctx, req.Data, req.MimeType)
	extractSpan.End()
	if err != nil {
		return Result{}, err
	}

	ctx, detectSpan := p.tracer.Start(ctx, "pipeline.detect")
	findings, err := p.detector.Detect(ctx, pages, p.definitions)
	detectSpan.End()
	if err != nil {
		return Result{}, err
	}

	// Confidence gate: below-threshold findings stay in the report but are
	// never located or rendered.
	var eligible, belowThreshold []document.Finding
	for _, f := range findings {
		if f.Confidence < req.Threshold {
			belowThreshold = append(belowThreshold, f)
			continue
		}
		eligible = append(eligible, f)
	}

	located := p.locator.Locate(pages, eligible)

	targets := located.Targets
	if req.Mode == document.ModeSynthetic {
		gen := synth.New()
		for i := range targets {
			targets[i].Replacement = gen.Replace(targets[i].Finding)
		}
	}

	src, closeSource, err := p.openSource(req.Data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRender, err)
	}
	defer closeSource()

	ctx, renderSpan := p.tracer.Start(ctx, "pipeline.render")
	redacted, err := p.redactor.Apply(ctx, src, targets, req.Mode)
	renderSpan.End()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	rep := report.Build(report.Input{
		FileID:         req.FileID,
		Filename:       req.Filename,
		Mode:           req.Mode,
		Pages:          pages,
		Findings:       findings,
		Rendered:       targets,
		Unlocated:      located.Unlocated,
		BelowThreshold: belowThreshold,
		Started:        started,
		Completed:      time.Now(),
	})

	if p.dashboard != nil {
		p.dashboard.Merge(rep)
	}

	p.logger.Info("document de-identified",
		"file_id", req.FileID,
		"pages", rep.TotalPages,
		"ocr_pages", rep.OCRPages,
		"findings", rep.TotalFindings,
		"redacted", rep.TotalRedacted,
		"unlocated", rep.Unlocated,
		"below_threshold", rep.BelowThreshold,
		"mode", string(req.Mode),
		"duration", rep.Duration.String(),
	)
	return Result{Redacted: redacted, Report: rep}, nil
}

func validate(req *Request) error {
	if req.Threshold < 0 || req.Threshold > 100 {
		return fmt.Errorf("%w: confidence threshold %d out of range [0,100]", config.ErrConfiguration, req.Threshold)
	}
	mode, err := document.ParseMode(string(req.Mode))
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	req.Mode = mode
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: empty document", config.ErrConfiguration)
	}
	return nil
}
