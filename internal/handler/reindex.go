package handler

import (
	"context"
	"net/http"

	"github.com/squadnav-ai/conversational-backend/internal/service"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

// Backfiller rebuilds the search index from the primary store.
type Backfiller interface {
	Run(ctx context.Context) (service.ReindexReport, error)
}

// ReindexHandler handles the admin backfill endpoint.
type ReindexHandler struct {
	reindex Backfiller
	logger  *logger.Logger
}

// NewReindexHandler creates a new reindex handler.
func NewReindexHandler(reindex Backfiller, log *logger.Logger) *ReindexHandler {
	return &ReindexHandler{
		reindex: reindex,
		logger:  log,
	}
}

// Reindex handles POST /api/v1/admin/reindex
func (h *ReindexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	report, err := h.reindex.Run(r.Context())
	if err != nil {
		h.logger.Error("reindex failed")
		writeError(w, http.StatusInternalServerError, "reindex failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
