package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/internal/primary"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

// ConversationService serves conversation reads and deletes.
type ConversationService struct {
	store  PrimaryStore
	cache  Snapshots
	events EventPublisher
	logger *logger.Logger
}

// NewConversationService creates a conversation service.
func NewConversationService(store PrimaryStore, cache Snapshots, events EventPublisher, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  store,
		cache:  cache,
		events: events,
		logger: log,
	}
}

// List returns a use case's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, useCaseID int64) (*model.ListConversationsResponse, error) {
	conversations, err := s.store.ListConversations(ctx, useCaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	for i := range conversations {
		if conversations[i].Title == "" {
			conversations[i].Title = "New Conversation"
		}
	}

	return &model.ListConversationsResponse{
		Conversations: conversations,
		Total:         len(conversations),
	}, nil
}

// Messages returns a conversation's messages oldest first, served from
// the snapshot cache when fresh.
func (s *ConversationService) Messages(ctx context.Context, conversationID int64) (*model.ListMessagesResponse, error) {
	if msgs, ok := s.cache.GetMessages(ctx, conversationID); ok {
		return &model.ListMessagesResponse{
			Messages: msgs,
			Total:    len(msgs),
			Cached:   true,
		}, nil
	}

	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, primary.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	s.cache.SetMessages(ctx, conversationID, msgs)

	return &model.ListMessagesResponse{
		Messages: msgs,
		Total:    len(msgs),
	}, nil
}

// Delete removes a conversation from the primary store, drops its
// snapshot, and queues the index cascade. The index side deletes the
// conversation document and then its messages; the two index steps are
// not atomic, and the worker redelivers until both land.
func (s *ConversationService) Delete(ctx context.Context, useCaseID, conversationID int64) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if errors.Is(err, primary.ErrNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv.UseCaseID != useCaseID {
		return ErrConversationNotFound
	}

	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		if errors.Is(err, primary.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	s.cache.InvalidateMessages(ctx, conversationID)

	event := &model.IndexEvent{
		ID:             uuid.New().String(),
		Type:           model.IndexEventDeleteConversation,
		ConversationID: conversationID,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish delete index event",
			zap.Int64("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	return nil
}
