// Package model defines data structures for the conversational backend.
package model

import (
	"time"
)

// Conversation represents a conversation thread within a use case.
type Conversation struct {
	ID        int64     `json:"id"`
	UseCaseID int64     `json:"use_case_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
