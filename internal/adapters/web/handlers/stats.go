package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"marketpulse/internal/metrics"
)

// StatsHandler serves recent cycle results and error counts from the
// recorder's bounded ring.
type StatsHandler struct {
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(recorder *metrics.Recorder, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{recorder: recorder, logger: logger}
}

// Handle serves GET /stats.
func (h *StatsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	cycles := h.recorder.RecentCycles()

	writeJSON(w, http.StatusOK, map[string]any{
		"recent_cycles": cycles,
		"error_counts":  h.recorder.ErrorCounts(),
	})
}
