package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/llm"
	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/internal/primary"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

// ErrConversationNotFound is returned when a referenced conversation
// does not exist within the use case.
var ErrConversationNotFound = errors.New("conversation not found")

const titleLimit = 50

// ChatService runs a chat turn: resolve the conversation, assemble
// history, complete, persist both messages, then refresh the auxiliary
// stores in the fixed order primary write, cache invalidation, index
// publish.
type ChatService struct {
	store  PrimaryStore
	cache  Snapshots
	llm    llm.Client
	events EventPublisher
	model  string
	logger *logger.Logger
}

// NewChatService creates a chat service.
func NewChatService(store PrimaryStore, cache Snapshots, llmClient llm.Client, events EventPublisher, defaultModel string, log *logger.Logger) *ChatService {
	return &ChatService{
		store:  store,
		cache:  cache,
		llm:    llmClient,
		events: events,
		model:  defaultModel,
		logger: log,
	}
}

// Chat handles one turn within a use case. A nil conversation id starts
// a new conversation titled from the first message.
func (s *ChatService) Chat(ctx context.Context, useCaseID int64, req *model.ChatRequest) (*model.ChatResponse, error) {
	conv, err := s.resolveConversation(ctx, useCaseID, req)
	if err != nil {
		return nil, err
	}

	history := s.loadHistory(ctx, conv.ID)

	userMsg, err := s.store.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}
	s.cache.InvalidateMessages(ctx, conv.ID)
	s.publishMessage(ctx, useCaseID, userMsg)
	metrics.MessagesTotal.WithLabelValues(formatID(useCaseID), string(model.RoleUser)).Inc()

	completion, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		Model:    s.model,
		Messages: chatMessages(history, req.Message),
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	assistantMsg, err := s.store.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        completion.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	conv, err = s.store.TouchConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	s.cache.InvalidateMessages(ctx, conv.ID)
	s.publishMessage(ctx, useCaseID, assistantMsg)
	s.publishConversation(ctx, conv)
	metrics.MessagesTotal.WithLabelValues(formatID(useCaseID), string(model.RoleAssistant)).Inc()

	return &model.ChatResponse{
		Response:       completion.Content,
		ConversationID: conv.ID,
		Cached:         completion.Cached,
	}, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, useCaseID int64, req *model.ChatRequest) (*model.Conversation, error) {
	if req.ConversationID != nil {
		conv, err := s.store.GetConversation(ctx, *req.ConversationID)
		if errors.Is(err, primary.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		if conv.UseCaseID != useCaseID {
			return nil, ErrConversationNotFound
		}
		return conv, nil
	}

	conv, err := s.store.CreateConversation(ctx, useCaseID, titleFrom(req.Message))
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues(formatID(useCaseID)).Inc()
	return conv, nil
}

// loadHistory reads the conversation snapshot through the cache. A cache
// problem only costs a primary-store read.
func (s *ChatService) loadHistory(ctx context.Context, conversationID int64) []model.Message {
	if msgs, ok := s.cache.GetMessages(ctx, conversationID); ok {
		return msgs
	}

	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		s.logger.Warn("failed to load conversation history",
			zap.Int64("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil
	}
	s.cache.SetMessages(ctx, conversationID, msgs)
	return msgs
}

func (s *ChatService) publishMessage(ctx context.Context, useCaseID int64, msg *model.Message) {
	event := &model.IndexEvent{
		ID:   uuid.New().String(),
		Type: model.IndexEventMessage,
		Message: &model.MessageDocument{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			UseCaseID:      useCaseID,
			Role:           string(msg.Role),
			Content:        msg.Content,
			Metadata:       msg.Metadata,
			CreatedAt:      msg.CreatedAt,
		},
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish message index event",
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (s *ChatService) publishConversation(ctx context.Context, conv *model.Conversation) {
	count, err := s.store.CountMessages(ctx, conv.ID)
	if err != nil {
		s.logger.Warn("failed to count messages for index event",
			zap.Int64("conversation_id", conv.ID),
			zap.Error(err),
		)
	}

	event := &model.IndexEvent{
		ID:   uuid.New().String(),
		Type: model.IndexEventConversation,
		Conversation: &model.ConversationDocument{
			ConversationID: conv.ID,
			UseCaseID:      conv.UseCaseID,
			Title:          conv.Title,
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
			MessageCount:   count,
		},
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish conversation index event",
			zap.Int64("conversation_id", conv.ID),
			zap.Error(err),
		)
	}
}

func chatMessages(history []model.Message, userMessage string) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, llm.ChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return append(msgs, llm.ChatMessage{
		Role:    string(model.RoleUser),
		Content: userMessage,
	})
}

// titleFrom derives a new conversation's title from its first message.
func titleFrom(message string) string {
	if len(message) > titleLimit {
		return message[:titleLimit] + "..."
	}
	return message
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
