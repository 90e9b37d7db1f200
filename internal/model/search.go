package model

import (
	"encoding/json"
	"time"
)

// MessageDocument is the indexed form of a message. The primary-store
// message id doubles as the external document id so re-indexing the same
// message overwrites rather than duplicates. Metadata stays opaque; the
// mapping disables indexing for it.
type MessageDocument struct {
	MessageID      int64           `json:"message_id"`
	ConversationID int64           `json:"conversation_id"`
	UseCaseID      int64           `json:"use_case_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ConversationDocument is the indexed form of a conversation.
type ConversationDocument struct {
	ConversationID int64     `json:"conversation_id"`
	UseCaseID      int64     `json:"use_case_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
}

// MessageHit is a single message search result with relevance context.
type MessageHit struct {
	Document   MessageDocument     `json:"document"`
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// MessageSearchResults holds message search hits and the total match count.
type MessageSearchResults struct {
	Total int64        `json:"total"`
	Hits  []MessageHit `json:"hits"`
}

// ConversationHit is a single conversation search result.
type ConversationHit struct {
	Document ConversationDocument `json:"document"`
	Score    float64              `json:"score"`
}

// ConversationSearchResults holds conversation search hits and the total
// match count.
type ConversationSearchResults struct {
	Total int64             `json:"total"`
	Hits  []ConversationHit `json:"hits"`
}

// DateBucket is a single day bucket from the message histogram.
type DateBucket struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TermBucket is a single term bucket from a terms aggregation.
type TermBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// MessageStats summarizes message activity, computed by the index engine.
type MessageStats struct {
	TotalMessages      int64        `json:"total_messages"`
	MessagesPerDay     []DateBucket `json:"messages_per_day"`
	MessagesByRole     []TermBucket `json:"messages_by_role"`
	TotalConversations int64        `json:"total_conversations"`
}
