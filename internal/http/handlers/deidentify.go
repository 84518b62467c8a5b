// Package handlers implements the HTTP surface of the de-identification
// service.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openphi/deidentify/internal/audit"
	"github.com/openphi/deidentify/internal/config"
	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/jobs"
	"github.com/openphi/deidentify/internal/pipeline"
	"github.com/openphi/deidentify/internal/report"
	"github.com/openphi/deidentify/internal/storage"
	"github.com/openphi/deidentify/pkg/logging"
)

// Processor runs one de-identification request. *pipeline.Pipeline
// satisfies it.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// DeidentifyHandler serves document upload, job status, artifact download,
// and dashboard endpoints.
type DeidentifyHandler struct {
	processor        Processor
	artifacts        storage.Store
	publisher        *jobs.Publisher
	jobStore         jobs.Store
	dashboard        *report.Dashboard
	audit            *audit.Service
	maxUploadBytes   int64
	defaultMode      document.Mode
	defaultThreshold int
	logger           *logging.Logger
}

// DeidentifyHandlerConfig wires the handler's collaborators. Publisher and
// JobStore may be nil when async processing is disabled; Audit may be nil
// when no database is configured.
type DeidentifyHandlerConfig struct {
	Processor        Processor
	Artifacts        storage.Store
	Publisher        *jobs.Publisher
	JobStore         jobs.Store
	Dashboard        *report.Dashboard
	Audit            *audit.Service
	MaxUploadBytes   int64
	DefaultMode      document.Mode
	DefaultThreshold int
	Logger           *logging.Logger
}

// NewDeidentifyHandler creates the handler.
func NewDeidentifyHandler(cfg DeidentifyHandlerConfig) *DeidentifyHandler {
	if cfg.Processor == nil {
		panic("handlers: processor cannot be nil")
	}
	if cfg.Artifacts == nil {
		panic("handlers: artifact store cannot be nil")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = document.DefaultMode
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &DeidentifyHandler{
		processor:        cfg.Processor,
		artifacts:        cfg.Artifacts,
		publisher:        cfg.Publisher,
		jobStore:         cfg.JobStore,
		dashboard:        cfg.Dashboard,
		audit:            cfg.Audit,
		maxUploadBytes:   cfg.MaxUploadBytes,
		defaultMode:      cfg.DefaultMode,
		defaultThreshold: cfg.DefaultThreshold,
		logger:           cfg.Logger,
	}
}

// HealthCheck reports service liveness.
func (h *DeidentifyHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type upload struct {
	fileID    string
	filename  string
	mimeType  string
	data      []byte
	mode      document.Mode
	threshold int
}

func (h *DeidentifyHandler) parseUpload(r *http.Request) (upload, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return upload{}, fmt.Errorf("%w: invalid multipart form: %v", config.ErrConfiguration, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, fmt.Errorf("%w: missing file field", config.ErrConfiguration)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return upload{}, fmt.Errorf("handlers: read upload: %w", err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return upload{}, fmt.Errorf("%w: upload exceeds %d bytes", config.ErrConfiguration, h.maxUploadBytes)
	}

	mode := h.defaultMode
	if v := r.FormValue("mode"); v != "" {
		parsed, err := document.ParseMode(v)
		if err != nil {
			return upload{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		mode = parsed
	}

	threshold := h.defaultThreshold
	if v := r.FormValue("threshold"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > 100 {
			return upload{}, fmt.Errorf("%w: threshold must be an integer in [0,100]", config.ErrConfiguration)
		}
		threshold = parsed
	}

	return upload{
		fileID:    uuid.NewString(),
		filename:  header.Filename,
		mimeType:  header.Header.Get("Content-Type"),
		data:      data,
		mode:      mode,
		threshold: threshold,
	}, nil
}

// Deidentify processes a document synchronously and returns the report.
func (h *DeidentifyHandler) Deidentify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	up, err := h.parseUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	log := h.logger.With("file_id", up.fileID, "filename", up.filename)

	h.auditReceived(ctx, up, "")

	if err := h.artifacts.Put(ctx, storage.OriginalKey(up.fileID), up.data, "application/pdf"); err != nil {
		log.Error("failed to store original", "error", err)
		writeError(w, err)
		return
	}

	result, err := h.processor.Process(ctx, pipeline.Request{
		FileID:    up.fileID,
		Filename:  up.filename,
		Data:      up.data,
		MimeType:  up.mimeType,
		Mode:      up.mode,
		Threshold: up.threshold,
	})
	if err != nil {
		log.Error("processing failed", "error", err)
		h.auditFailed(ctx, up, err)
		writeError(w, err)
		return
	}

	if err := h.storeResult(ctx, up.fileID, result); err != nil {
		log.Error("failed to store result", "error", err)
		writeError(w, err)
		return
	}

	h.auditCompleted(ctx, up, result.Report)

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":      up.fileID,
		"report":       result.Report,
		"download_url": "/api/v1/download/" + up.fileID,
	})
}

// CreateJob accepts a document for asynchronous processing.
func (h *DeidentifyHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil || h.jobStore == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "async processing is not enabled"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	up, err := h.parseUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()

	if err := h.artifacts.Put(ctx, storage.OriginalKey(up.fileID), up.data, "application/pdf"); err != nil {
		h.logger.Error("failed to store original", "file_id", up.fileID, "error", err)
		writeError(w, err)
		return
	}

	jobID, err := h.publisher.Publish(ctx, jobs.Payload{
		FileID:   up.fileID,
		Filename: up.filename,
		MimeType: up.mimeType,
	}, up.mode, up.threshold)
	if err != nil {
		h.logger.Error("failed to enqueue job", "file_id", up.fileID, "error", err)
		writeError(w, err)
		return
	}

	h.auditReceived(ctx, up, jobID)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     jobID,
		"file_id":    up.fileID,
		"status_url": "/api/v1/jobs/" + jobID,
	})
}

// GetJob returns the status and, when complete, the report for a job.
func (h *DeidentifyHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobStore == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "async processing is not enabled"})
		return
	}

	jobID := chi.URLParam(r, "jobID")
	job, err := h.jobStore.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Download serves the redacted document.
func (h *DeidentifyHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	data, err := h.artifacts.Get(r.Context(), storage.RedactedKey(fileID))
	if err != nil {
		writeError(w, err)
		return
	}

	if h.audit != nil {
		if err := h.audit.LogDocumentDownloaded(r.Context(), fileID); err != nil {
			h.logger.Error("audit log failed", "file_id", fileID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileID+"-redacted.pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetReport serves the stored redaction report.
func (h *DeidentifyHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	data, err := h.artifacts.Get(r.Context(), storage.ReportKey(fileID))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetDashboard returns aggregate statistics across processed documents.
func (h *DeidentifyHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if h.dashboard == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "dashboard is not enabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.dashboard.Snapshot())
}

func (h *DeidentifyHandler) storeResult(ctx context.Context, fileID string, result pipeline.Result) error {
	if err := h.artifacts.Put(ctx, storage.RedactedKey(fileID), result.Redacted, "application/pdf"); err != nil {
		return err
	}
	reportJSON, err := json.Marshal(result.Report)
	if err != nil {
		return fmt.Errorf("handlers: encode report: %w", err)
	}
	return h.artifacts.Put(ctx, storage.ReportKey(fileID), reportJSON, "application/json")
}

func (h *DeidentifyHandler) auditReceived(ctx context.Context, up upload, jobID string) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogDocumentReceived(ctx, up.fileID, jobID, up.filename, string(up.mode), int64(len(up.data))); err != nil {
		h.logger.Error("audit log failed", "file_id", up.fileID, "error", err)
	}
}

func (h *DeidentifyHandler) auditCompleted(ctx context.Context, up upload, rep document.RedactionReport) {
	if h.audit == nil {
		return
	}
	err := h.audit.LogDocumentCompleted(ctx, up.fileID, "", up.filename, string(up.mode), audit.Details{
		TotalPages:     rep.TotalPages,
		TotalFindings:  rep.TotalFindings,
		TotalRedacted:  rep.TotalRedacted,
		Unlocated:      rep.Unlocated,
		BelowThreshold: rep.BelowThreshold,
		DurationSecs:   rep.DurationSecs,
	})
	if err != nil {
		h.logger.Error("audit log failed", "file_id", up.fileID, "error", err)
	}
}

func (h *DeidentifyHandler) auditFailed(ctx context.Context, up upload, cause error) {
	if h.audit == nil {
		return
	}
	if err := h.audit.LogDocumentFailed(ctx, up.fileID, "", up.filename, string(up.mode), cause.Error()); err != nil {
		h.logger.Error("audit log failed", "file_id", up.fileID, "error", err)
	}
}
