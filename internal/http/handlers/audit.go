package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/openphi/deidentify/internal/audit"
	"github.com/openphi/deidentify/pkg/logging"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	service *audit.Service
	logger  *logging.Logger
}

func NewAuditHandler(service *audit.Service, logger *logging.Logger) *AuditHandler {
	if service == nil {
		panic("handlers: audit service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{service: service, logger: logger}
}

// ListEvents returns audit events filtered by query parameters: file_id,
// event_type, start, end (RFC 3339), limit, offset.
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		FileID:    q.Get("file_id"),
		EventType: audit.EventType(q.Get("event_type")),
		Limit:     100,
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer in [1,1000]"})
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be a non-negative integer"})
			return
		}
		filter.Offset = offset
	}
	if v := q.Get("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be RFC 3339"})
			return
		}
		filter.StartTime = start
	}
	if v := q.Get("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be RFC 3339"})
			return
		}
		filter.EndTime = end
	}

	events, err := h.service.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to query audit events"})
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
