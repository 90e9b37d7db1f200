package handler

import (
	"context"
	"net/http"

	"github.com/squadnav-ai/conversational-backend/internal/middleware"
	"github.com/squadnav-ai/conversational-backend/internal/model"
)

// QuotaReader reports current rate limit consumption without spending it.
type QuotaReader interface {
	Status(ctx context.Context, identity, endpoint string) model.RateLimitStatus
}

// RateLimitHandler handles the rate limit status endpoint.
type RateLimitHandler struct {
	limiter  QuotaReader
	endpoint string
}

// NewRateLimitHandler creates a new rate limit status handler. The
// endpoint label must match the one the throttling middleware uses so
// status reads the same window the middleware consumes.
func NewRateLimitHandler(limiter QuotaReader, endpoint string) *RateLimitHandler {
	return &RateLimitHandler{
		limiter:  limiter,
		endpoint: endpoint,
	}
}

// Status handles GET /api/v1/rate-limit
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r)
	writeJSON(w, http.StatusOK, h.limiter.Status(r.Context(), identity, h.endpoint))
}
