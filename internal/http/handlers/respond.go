package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openphi/deidentify/internal/config"
	"github.com/openphi/deidentify/internal/detect"
	"github.com/openphi/deidentify/internal/extract"
	"github.com/openphi/deidentify/internal/jobs"
	"github.com/openphi/deidentify/internal/pipeline"
	"github.com/openphi/deidentify/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

// statusForError maps the pipeline's error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, config.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, detect.ErrClassifier):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrRender):
		return http.StatusInternalServerError
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
