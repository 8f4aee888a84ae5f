package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"marketpulse/internal/application/usecases"
)

// SnapshotsHandler serves the read-only query surfaces.
type SnapshotsHandler struct {
	queries *usecases.SnapshotQueryUseCase
	logger  *zap.Logger
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(queries *usecases.SnapshotQueryUseCase, logger *zap.Logger) *SnapshotsHandler {
	return &SnapshotsHandler{queries: queries, logger: logger}
}

// HandleLatest serves GET /snapshots/latest/{source}/{entity}.
func (h *SnapshotsHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	source, entity := vars["source"], vars["entity"]

	snap, err := h.queries.GetLatest(r.Context(), source, entity)
	if err != nil {
		h.logger.Error("latest snapshot lookup failed",
			zap.String("source", source), zap.String("entity", entity), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "message": "live store unavailable",
		})
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status": "error", "message": "no snapshot", "source": source, "entity": entity,
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleLatestBySource serves GET /snapshots/latest/{source}.
func (h *SnapshotsHandler) HandleLatestBySource(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	snaps, err := h.queries.GetLatestBySource(r.Context(), source)
	if err != nil {
		h.logger.Error("latest snapshots lookup failed",
			zap.String("source", source), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "message": "live store unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":    source,
		"count":     len(snaps),
		"snapshots": snaps,
	})
}

// HandleHistory serves GET /snapshots/history/{source}/{entity}. Optional
// query parameters: from and to as RFC 3339 timestamps, limit as an integer.
func (h *SnapshotsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	source, entity := vars["source"], vars["entity"]

	q := r.URL.Query()
	from, ok := parseTimeParam(w, q.Get("from"), "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(w, q.Get("to"), "to")
	if !ok {
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "error", "message": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	snaps, err := h.queries.GetHistory(r.Context(), source, entity, from, to, limit)
	if err != nil {
		h.logger.Error("history lookup failed",
			zap.String("source", source), zap.String("entity", entity), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error", "message": "analytical store unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":    source,
		"entity":    entity,
		"count":     len(snaps),
		"snapshots": snaps,
	})
}

func parseTimeParam(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "error", "message": name + " must be an RFC 3339 timestamp",
		})
		return time.Time{}, false
	}
	return t, true
}
