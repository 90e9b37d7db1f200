package model

import (
	"time"
)

// IndexEventType represents the type of index sync event.
type IndexEventType string

const (
	IndexEventMessage            IndexEventType = "index_message"
	IndexEventConversation       IndexEventType = "index_conversation"
	IndexEventDeleteConversation IndexEventType = "delete_conversation"
)

// IndexEvent is the work-queue payload that mirrors a primary-store write
// into the search index. Events may be redelivered; consumers upsert by
// primary key so replays converge.
type IndexEvent struct {
	ID             string                `json:"id"`
	Type           IndexEventType        `json:"type"`
	Message        *MessageDocument      `json:"message,omitempty"`
	Conversation   *ConversationDocument `json:"conversation,omitempty"`
	ConversationID int64                 `json:"conversation_id,omitempty"`
	OccurredAt     time.Time             `json:"occurred_at"`
}
