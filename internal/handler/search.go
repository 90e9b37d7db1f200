package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/internal/search"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

// SearchReader answers full-text queries against the search index.
type SearchReader interface {
	SearchMessages(ctx context.Context, q search.MessagesQuery) model.MessageSearchResults
	SearchConversations(ctx context.Context, q search.ConversationsQuery) model.ConversationSearchResults
	SuggestTitles(ctx context.Context, prefix string, size int) []string
	MessageStats(ctx context.Context, useCaseID int64) model.MessageStats
}

// Memoizer caches expensive read results under a name and argument key.
type Memoizer interface {
	Memoize(ctx context.Context, name, args string, ttl time.Duration, fill func(context.Context) (string, error)) (string, bool, error)
}

// SearchHandler handles search and analytics endpoints.
type SearchHandler struct {
	search SearchReader
	memo   Memoizer
	logger *logger.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchReader SearchReader, memo Memoizer, log *logger.Logger) *SearchHandler {
	return &SearchHandler{
		search: searchReader,
		memo:   memo,
		logger: log,
	}
}

// Messages handles GET /api/v1/search/messages
func (h *SearchHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	q := search.MessagesQuery{
		Query:          params.Get("q"),
		UseCaseID:      queryInt64(params.Get("use_case_id")),
		ConversationID: queryInt64(params.Get("conversation_id")),
		Role:           params.Get("role"),
		FromDate:       params.Get("from_date"),
		ToDate:         params.Get("to_date"),
		Size:           queryInt(params.Get("size"), 0, 100),
		From:           queryInt(params.Get("offset"), 0, 10000),
	}

	writeJSON(w, http.StatusOK, h.search.SearchMessages(ctx, q))
}

// Conversations handles GET /api/v1/search/conversations
func (h *SearchHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	query := params.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	q := search.ConversationsQuery{
		Query:     query,
		UseCaseID: queryInt64(params.Get("use_case_id")),
		Size:      queryInt(params.Get("size"), 0, 100),
	}

	writeJSON(w, http.StatusOK, h.search.SearchConversations(ctx, q))
}

// Suggest handles GET /api/v1/search/suggest
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	prefix := params.Get("prefix")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter prefix")
		return
	}
	size := queryInt(params.Get("size"), 0, 20)

	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": h.search.SuggestTitles(ctx, prefix, size),
	})
}

// Analytics handles GET /api/v1/analytics/messages
func (h *SearchHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	useCaseID := queryInt64(r.URL.Query().Get("use_case_id"))

	payload, cached, err := h.memo.Memoize(ctx, "message_stats", strconv.FormatInt(useCaseID, 10), 0,
		func(ctx context.Context) (string, error) {
			stats := h.search.MessageStats(ctx, useCaseID)
			data, err := json.Marshal(stats)
			if err != nil {
				return "", err
			}
			return string(data), nil
		})
	if err != nil {
		h.logger.Error("failed to compute message stats")
		writeError(w, http.StatusInternalServerError, "failed to compute message stats")
		return
	}

	if cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(payload))
}

// queryInt64 parses an int64 query parameter, zero when absent or bad.
func queryInt64(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// queryInt parses a bounded int query parameter, falling back to def.
func queryInt(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > max {
		return def
	}
	return v
}
