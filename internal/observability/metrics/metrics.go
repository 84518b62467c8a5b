package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the de-identification
// pipeline.
type PipelineMetrics struct {
	documentsTotal  *prometheus.CounterVec
	findingsTotal   *prometheus.CounterVec
	ocrPagesTotal   prometheus.Counter
	processDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		documentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deidentify",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Total documents processed",
		}, []string{"status", "mode"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deidentify",
			Subsystem: "pipeline",
			Name:      "findings_total",
			Help:      "Total PHI findings by category",
		}, []string{"category"}),
		ocrPagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deidentify",
			Subsystem: "pipeline",
			Name:      "ocr_pages_total",
			Help:      "Total pages extracted via the OCR fallback",
		}),
		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deidentify",
			Subsystem: "pipeline",
			Name:      "process_duration_seconds",
			Help:      "End-to-end document processing duration",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.documentsTotal, m.findingsTotal, m.ocrPagesTotal, m.processDuration)
	return m
}

func (m *PipelineMetrics) ObserveDocument(status, mode string, seconds float64) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(status, mode).Inc()
	m.processDuration.WithLabelValues(mode).Observe(seconds)
}

func (m *PipelineMetrics) ObserveFindings(category string, count int) {
	if m == nil {
		return
	}
	m.findingsTotal.WithLabelValues(category).Add(float64(count))
}

func (m *PipelineMetrics) ObserveOCRPages(count int) {
	if m == nil {
		return
	}
	m.ocrPagesTotal.Add(float64(count))
}
