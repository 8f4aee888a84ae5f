package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"marketpulse/internal/metrics"
)

// HealthHandler reports per-source scheduler health.
type HealthHandler struct {
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(recorder *metrics.Recorder, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{recorder: recorder, logger: logger}
}

// Handle serves GET /health.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	health := h.recorder.Health()

	status := "healthy"
	for _, src := range health {
		if src.ConsecutiveFailures > 0 {
			status = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"sources": health,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
