package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bixapp/bix/internal/logging"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	payload := map[string]string{
		"status":   "ok",
		"database": "skipped",
	}

	if h.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Error("database health check failed", "error", err)
			payload["status"] = "degraded"
			payload["database"] = "unreachable"
			respondJSON(ctx, w, http.StatusServiceUnavailable, payload)
			return
		}
		payload["database"] = "ok"
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}
