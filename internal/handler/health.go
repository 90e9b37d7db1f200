package handler

import (
	"context"
	"net/http"

	"github.com/squadnav-ai/conversational-backend/internal/health"
)

// Pinger reports primary store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InfraChecker produces the aggregate infrastructure report.
type InfraChecker interface {
	Check(ctx context.Context) health.Report
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db      Pinger
	checker InfraChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, checker InfraChecker) *HealthHandler {
	return &HealthHandler{
		db:      db,
		checker: checker,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. Only the primary store gates readiness;
// every other component degrades in place and shows up in /health/infra.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "primary store not reachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Infra handles GET /health/infra
func (h *HealthHandler) Infra(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Check(r.Context()))
}
