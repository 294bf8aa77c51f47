package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "b3stream"

// ConnCounter reports the number of live subscribers.
type ConnCounter interface {
	Len() int
}

// HealthHandler serves the banner and health-check endpoints.
type HealthHandler struct {
	conns  ConnCounter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. conns may be nil when no
// subscriber channel is served.
func NewHealthHandler(conns ConnCounter, clock clockwork.Clock, logger *slog.Logger) *HealthHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthHandler{conns: conns, clock: clock, logger: logger}
}

// Root responds with the service banner.
// GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "B3 market data stream",
		"status":    "online",
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheck responds with the service status and live connection count.
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	conns := 0
	if h.conns != nil {
		conns = h.conns.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"service":     ServiceName,
		"timestamp":   h.clock.Now().UTC().Format(time.RFC3339),
		"connections": conns,
	})
}
