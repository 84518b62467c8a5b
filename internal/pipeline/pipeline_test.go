package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openphi/deidentify/internal/config"
	"github.com/openphi/deidentify/internal/detect"
	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/locate"
	"github.com/openphi/deidentify/internal/phi"
	"github.com/openphi/deidentify/internal/redact"
	"github.com/openphi/deidentify/internal/report"
)

type fakeExtractor struct {
	pages []document.Page
	err   error
}

func (f fakeExtractor) Extract(context.Context, []byte, string) ([]document.Page, error) {
	return f.pages, f.err
}

type fakeDetector struct {
	findings []document.Finding
	err      error
}

func (f fakeDetector) Detect(context.Context, []document.Page, []phi.CategoryDefinition) ([]document.Finding, error) {
	return f.findings, f.err
}

// fakeRedactor records what it was asked to draw and returns PDF-looking
// bytes.
type fakeRedactor struct {
	mu      sync.Mutex
	targets []document.LocatedTarget
	mode    document.Mode
	err     error
}

func (f *fakeRedactor) Apply(_ context.Context, _ redact.PageSource, targets []document.LocatedTarget, mode document.Mode) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.targets = append([]document.LocatedTarget(nil), targets...)
	f.mode = mode
	return []byte("%PDF-1.7 redacted"), nil
}

type fakeSource struct{}

func (fakeSource) NumPages() int                  { return 2 }
func (fakeSource) PageSize(int) (float64, float64) { return 612, 792 }
func (fakeSource) Raster(int, float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

// twoPageDocument mirrors a visit note with a native first page and a
// scanned, OCR'd second page.
func twoPageDocument() []document.Page {
	return []document.Page{
		{
			Index: 0, Width: 612, Height: 792,
			Spans: []document.TextSpan{
				{PageIndex: 0, Text: "Patient: John Smith, DOB 01/02/1980", BBox: document.BoundingBox{X0: 72, Y0: 60, X1: 420, Y1: 74}, Source: document.SourceNative},
			},
		},
		{
			Index: 1, Width: 612, Height: 792, OCR: true, Scale: 300.0 / 72.0,
			Spans: []document.TextSpan{
				{PageIndex: 1, Text: "John Smith", BBox: document.BoundingBox{X0: 100, Y0: 500, X1: 220, Y1: 520}, Source: document.SourceOCR, Confidence: 88},
			},
		},
	}
}

func scenarioFindings() []document.Finding {
	return []document.Finding{
		{ID: "f-name", Category: phi.CategoryPatientName, Text: "John Smith", PageHint: -1, Confidence: 95},
		{ID: "f-dob", Category: phi.CategoryDate, Subcategory: "date_of_birth", Text: "01/02/1980", PageHint: 0, Confidence: 90},
	}
}

func newTestPipeline(t *testing.T, extractor Extractor, detector detect.Detector, redactor Redactor, dash *report.Dashboard) *Pipeline {
	t.Helper()
	p := New(Deps{
		Extractor: extractor,
		Detector:  detector,
		Locator:   locate.New(),
		Redactor:  redactor,
		Dashboard: dash,
	})
	p.openSource = func([]byte) (redact.PageSource, func(), error) {
		return fakeSource{}, func() {}, nil
	}
	return p
}

func request(mode document.Mode, threshold int) Request {
	return Request{
		FileID:    "file-1",
		Filename:  "visit.pdf",
		Data:      []byte("%PDF-1.7 fake"),
		MimeType:  "application/pdf",
		Mode:      mode,
		Threshold: threshold,
	}
}

func TestProcessTwoPageScenario(t *testing.T) {
	redactor := &fakeRedactor{}
	dash := report.NewDashboard(10)
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()}, fakeDetector{findings: scenarioFindings()}, redactor, dash)

	res, err := p.Process(context.Background(), request(document.ModePlaceholder, 70))
	require.NoError(t, err)

	// Three occurrences: the name on both pages plus the DOB on page one.
	require.Len(t, redactor.targets, 3)
	assert.Equal(t, document.ModePlaceholder, redactor.mode)

	byPage := map[int]int{}
	for _, tgt := range redactor.targets {
		byPage[tgt.PageIndex]++
	}
	assert.Equal(t, 2, byPage[0])
	assert.Equal(t, 1, byPage[1], "OCR page matched too")

	assert.Equal(t, 2, res.Report.TotalFindings)
	assert.Equal(t, 2, res.Report.TotalRedacted, "occurrence count differs from finding count")
	assert.Equal(t, 1, res.Report.OCRPages)
	assert.NotEmpty(t, res.Redacted)

	snap := dash.Snapshot()
	assert.Equal(t, 1, snap.TotalDocuments)
	assert.Equal(t, 2, snap.TotalFindings)
	assert.Equal(t, 1, snap.Categories[phi.CategoryPatientName])
}

func TestProcessConfidenceGate(t *testing.T) {
	findings := []document.Finding{
		{ID: "f-low", Category: phi.CategoryPatientName, Text: "John Smith", PageHint: -1, Confidence: 70},
	}
	redactor := &fakeRedactor{}
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()}, fakeDetector{findings: findings}, redactor, nil)

	res, err := p.Process(context.Background(), request(document.ModeMask, 80))
	require.NoError(t, err)

	assert.Empty(t, redactor.targets, "below-threshold finding is not rendered")
	assert.Equal(t, 1, res.Report.TotalFindings)
	assert.Equal(t, 0, res.Report.TotalRedacted)
	assert.Equal(t, 1, res.Report.BelowThreshold)
}

func TestProcessSyntheticReplacementsConsistent(t *testing.T) {
	redactor := &fakeRedactor{}
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()}, fakeDetector{findings: scenarioFindings()}, redactor, nil)

	_, err := p.Process(context.Background(), request(document.ModeSynthetic, 70))
	require.NoError(t, err)

	var nameReplacements []string
	for _, tgt := range redactor.targets {
		require.NotEmpty(t, tgt.Replacement)
		if tgt.Finding.Category == phi.CategoryPatientName {
			nameReplacements = append(nameReplacements, tgt.Replacement)
		}
	}
	require.Len(t, nameReplacements, 2)
	assert.Equal(t, nameReplacements[0], nameReplacements[1], "same literal maps to one replacement")
	assert.NotEqual(t, "John Smith", nameReplacements[0])
}

func TestProcessUnlocatedFindingKept(t *testing.T) {
	findings := append(scenarioFindings(), document.Finding{
		ID: "f-ghost", Category: phi.CategoryPhoneNumber, Text: "(555) 123-4567", PageHint: -1, Confidence: 92,
	})
	redactor := &fakeRedactor{}
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()}, fakeDetector{findings: findings}, redactor, nil)

	res, err := p.Process(context.Background(), request(document.ModePlaceholder, 70))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Report.TotalFindings)
	assert.Equal(t, 2, res.Report.TotalRedacted)
	assert.Equal(t, 1, res.Report.Unlocated)
}

func TestProcessClassifierFailureNoDashboardUpdate(t *testing.T) {
	dash := report.NewDashboard(10)
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()},
		fakeDetector{err: detect.ErrClassifier}, &fakeRedactor{}, dash)

	_, err := p.Process(context.Background(), request(document.ModeMask, 70))
	require.Error(t, err)
	assert.ErrorIs(t, err, detect.ErrClassifier)
	assert.Equal(t, 0, dash.Snapshot().TotalDocuments)
}

func TestProcessRenderFailureNoOutput(t *testing.T) {
	dash := report.NewDashboard(10)
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()},
		fakeDetector{findings: scenarioFindings()}, &fakeRedactor{err: errors.New("draw failed")}, dash)

	res, err := p.Process(context.Background(), request(document.ModeMask, 70))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)
	assert.Empty(t, res.Redacted)
	assert.Equal(t, 0, dash.Snapshot().TotalDocuments)
}

func TestProcessValidation(t *testing.T) {
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()},
		fakeDetector{findings: scenarioFindings()}, &fakeRedactor{}, nil)

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"threshold out of range", func(r *Request) { r.Threshold = 101 }},
		{"unknown mode", func(r *Request) { r.Mode = "blur" }},
		{"empty document", func(r *Request) { r.Data = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(document.ModeMask, 70)
			tt.mutate(&req)
			_, err := p.Process(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestProcessEmptyModeDefaults(t *testing.T) {
	redactor := &fakeRedactor{}
	p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()},
		fakeDetector{findings: scenarioFindings()}, redactor, nil)

	res, err := p.Process(context.Background(), Request{
		FileID: "f", Filename: "a.pdf", Data: []byte("%PDF-"), MimeType: "application/pdf",
		Threshold: 70,
	})
	require.NoError(t, err)
	assert.Equal(t, document.DefaultMode, res.Report.Mode)
	assert.Equal(t, document.DefaultMode, redactor.mode)
}

func TestProcessConcurrentDocumentsAggregate(t *testing.T) {
	const docs = 20

	dash := report.NewDashboard(10)

	var wg sync.WaitGroup
	for i := 0; i < docs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := newTestPipeline(t, fakeExtractor{pages: twoPageDocument()},
				fakeDetector{findings: scenarioFindings()}, &fakeRedactor{}, dash)
			_, err := p.Process(context.Background(), request(document.ModeMask, 70))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap := dash.Snapshot()
	assert.Equal(t, docs, snap.TotalDocuments)
	assert.Equal(t, docs*2, snap.TotalFindings, "no lost updates across concurrent documents")
	assert.Equal(t, docs, snap.Categories[phi.CategoryPatientName])
}

func TestNewPanicsOnNilDeps(t *testing.T) {
	assert.Panics(t, func() {
		New(Deps{Detector: fakeDetector{}, Locator: locate.New(), Redactor: &fakeRedactor{}})
	})
	assert.Panics(t, func() {
		New(Deps{Extractor: fakeExtractor{}, Locator: locate.New(), Redactor: &fakeRedactor{}})
	})
}
