package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/squadnav-ai/conversational-backend/internal/middleware"
	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/internal/service"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

// ChatRunner executes one conversational turn.
type ChatRunner interface {
	Chat(ctx context.Context, useCaseID int64, req *model.ChatRequest) (*model.ChatResponse, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	chat   ChatRunner
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat ChatRunner, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log,
	}
}

// Chat handles POST /api/v1/use-cases/{useCaseID}/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	useCaseID, err := middleware.ParseID(chi.URLParam(r, "useCaseID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid use case ID")
		return
	}

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chat.Chat(ctx, useCaseID, &req)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("chat turn failed")
		writeError(w, http.StatusInternalServerError, "failed to process chat")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
