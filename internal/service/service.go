// Package service provides business logic for the conversational backend.
package service

import (
	"context"

	"github.com/squadnav-ai/conversational-backend/internal/model"
)

// PrimaryStore is the slice of the relational store the services need.
type PrimaryStore interface {
	CreateConversation(ctx context.Context, useCaseID int64, title string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*model.Conversation, error)
	ListConversations(ctx context.Context, useCaseID int64) ([]model.Conversation, error)
	TouchConversation(ctx context.Context, id int64) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id int64) error
	AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error)
	CountMessages(ctx context.Context, conversationID int64) (int, error)
}

// EventPublisher enqueues index events for the sync worker. Publishing
// is best effort: the primary write has already happened, and a missed
// event is repaired by the reindex backfill.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.IndexEvent) error
}

// Snapshots is the conversation snapshot slice of the response cache.
type Snapshots interface {
	GetMessages(ctx context.Context, conversationID int64) ([]model.Message, bool)
	SetMessages(ctx context.Context, conversationID int64, msgs []model.Message)
	InvalidateMessages(ctx context.Context, conversationID int64)
}
