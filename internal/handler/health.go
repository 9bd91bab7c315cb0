package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness probes.
type HealthHandler struct {
	store   Pinger
	backend string
	logger  *slog.Logger
}

func NewHealthHandler(store Pinger, backend string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, backend: backend, logger: logger}
}

// HandleHealth pings the store with a short deadline.
//
// HTTP: GET /healthz
// Returns: 200 {"status": "ok"} or 503 {"status": "unavailable"}
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed",
			slog.String("backend", h.backend),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"backend": h.backend,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": h.backend,
	})
}
