package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a conversation message. Metadata is an opaque blob
// carried through storage untouched; nothing in the data plane inspects
// or indexes it.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	Role           Role            `json:"role"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ChatRequest is the request to send a message to the assistant.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID int64  `json:"conversation_id"`
	Cached         bool   `json:"cached,omitempty"`
}

// ListMessagesResponse is the response for listing a conversation's messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	Cached   bool      `json:"cached,omitempty"`
}
