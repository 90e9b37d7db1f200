package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/squadnav-ai/conversational-backend/internal/model"
)

// CreateConversation inserts a new conversation and returns it with its
// generated id and timestamps.
func (s *Store) CreateConversation(ctx context.Context, useCaseID int64, title string) (*model.Conversation, error) {
	query := `
        INSERT INTO conversations (use_case_id, title)
        VALUES ($1, $2)
        RETURNING id, use_case_id, title, created_at, updated_at
    `

	var conv model.Conversation
	err := s.pool.QueryRow(ctx, query, useCaseID, title).Scan(
		&conv.ID,
		&conv.UseCaseID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &conv, nil
}

// GetConversation returns a conversation by id, or ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id int64) (*model.Conversation, error) {
	query := `
        SELECT id, use_case_id, title, created_at, updated_at
        FROM conversations
        WHERE id = $1
    `

	var conv model.Conversation
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.UseCaseID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations returns all conversations for a use case, most
// recently updated first.
func (s *Store) ListConversations(ctx context.Context, useCaseID int64) ([]model.Conversation, error) {
	query := `
        SELECT id, use_case_id, title, created_at, updated_at
        FROM conversations
        WHERE use_case_id = $1
        ORDER BY updated_at DESC
    `

	rows, err := s.pool.Query(ctx, query, useCaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []model.Conversation{}
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.UseCaseID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}

	return conversations, nil
}

// TouchConversation bumps a conversation's updated_at to now and returns
// the updated row.
func (s *Store) TouchConversation(ctx context.Context, id int64) (*model.Conversation, error) {
	query := `
        UPDATE conversations
        SET updated_at = now()
        WHERE id = $1
        RETURNING id, use_case_id, title, created_at, updated_at
    `

	var conv model.Conversation
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.UseCaseID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	return &conv, nil
}

// DeleteConversation removes a conversation; its messages go with it via
// the foreign key cascade. Returns ErrNotFound when no row matched.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// CountMessages returns the number of messages in a conversation.
func (s *Store) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE conversation_id = $1`,
		conversationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

// ConversationWithCount is a conversation joined with its message count,
// the shape the search index wants.
type ConversationWithCount struct {
	model.Conversation
	MessageCount int
}

// ListAllConversations returns every conversation with its message
// count. Used by the reindex backfill.
func (s *Store) ListAllConversations(ctx context.Context) ([]ConversationWithCount, error) {
	query := `
        SELECT c.id, c.use_case_id, c.title, c.created_at, c.updated_at, count(m.id)
        FROM conversations c
        LEFT JOIN messages m ON m.conversation_id = c.id
        GROUP BY c.id
        ORDER BY c.id
    `

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []ConversationWithCount{}
	for rows.Next() {
		var conv ConversationWithCount
		if err := rows.Scan(
			&conv.ID,
			&conv.UseCaseID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
			&conv.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}

	return conversations, nil
}
