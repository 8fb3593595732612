package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness plus the state of optional dependencies.
type HealthHandler struct {
	checks map[string]Pinger
	logger *logging.Logger
	now    func() time.Time
}

func NewHealthHandler(checks map[string]Pinger, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{checks: checks, logger: logger, now: time.Now}
}

// HealthCheck always answers 200 while the process is up; degraded
// dependencies are listed rather than failing the probe.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health dependency down", "dependency", name, "error", err)
			deps[name] = "down"
			status = "degraded"
			continue
		}
		deps[name] = "up"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"message":      "Cardiology intake backend is running",
		"timestamp":    h.now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	})
}
