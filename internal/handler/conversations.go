// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/squadnav-ai/conversational-backend/internal/middleware"
	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/internal/service"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

// ConversationReader lists conversations, loads history, and deletes.
type ConversationReader interface {
	List(ctx context.Context, useCaseID int64) (*model.ListConversationsResponse, error)
	Messages(ctx context.Context, conversationID int64) (*model.ListMessagesResponse, error)
	Delete(ctx context.Context, useCaseID, conversationID int64) error
}

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	conversations ConversationReader
	logger        *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(conversations ConversationReader, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		logger:        log,
	}
}

// List handles GET /api/v1/use-cases/{useCaseID}/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	useCaseID, err := middleware.ParseID(chi.URLParam(r, "useCaseID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid use case ID")
		return
	}

	resp, err := h.conversations.List(ctx, useCaseID)
	if err != nil {
		h.logger.Error("failed to list conversations")
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Messages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation ID")
		return
	}

	resp, err := h.conversations.Messages(ctx, conversationID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to get messages")
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/use-cases/{useCaseID}/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	useCaseID, err := middleware.ParseID(chi.URLParam(r, "useCaseID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid use case ID")
		return
	}

	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation ID")
		return
	}

	if err := h.conversations.Delete(ctx, useCaseID, conversationID); err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to delete conversation")
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
	})
}
