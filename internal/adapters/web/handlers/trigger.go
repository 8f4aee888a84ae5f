package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"marketpulse/internal/scheduler"
)

// TriggerHandler enqueues an out-of-cadence cycle for one source.
type TriggerHandler struct {
	manager *scheduler.Manager
	logger  *zap.Logger
}

// NewTriggerHandler creates a new trigger handler.
func NewTriggerHandler(manager *scheduler.Manager, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{manager: manager, logger: logger}
}

// Handle serves POST /trigger/{source}. It returns immediately: 202 when the
// cycle was enqueued, 409 when one is already in flight.
func (h *TriggerHandler) Handle(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	err := h.manager.Trigger(source)
	switch {
	case errors.Is(err, scheduler.ErrUnknownSource):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status": "error", "message": "unknown source", "source": source,
		})
	case errors.Is(err, scheduler.ErrCycleRunning):
		writeJSON(w, http.StatusConflict, map[string]any{
			"status": "already_running", "source": source,
		})
	default:
		h.logger.Info("manual cycle triggered", zap.String("source", source))
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted", "source": source,
		})
	}
}
