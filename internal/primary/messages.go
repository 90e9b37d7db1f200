package primary

import (
	"context"
	"fmt"

	"github.com/squadnav-ai/conversational-backend/internal/model"
)

// AppendMessage inserts a message at the end of a conversation and
// returns it with its generated id and timestamp.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	query := `
        INSERT INTO messages (conversation_id, role, content, metadata)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `

	var metadata any
	if len(msg.Metadata) > 0 {
		metadata = []byte(msg.Metadata)
	}

	stored := *msg
	err := s.pool.QueryRow(ctx, query,
		msg.ConversationID,
		string(msg.Role),
		msg.Content,
		metadata,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return &stored, nil
}

// ListMessages returns a conversation's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	query := `
        SELECT id, conversation_id, role, content, metadata, created_at
        FROM messages
        WHERE conversation_id = $1
        ORDER BY created_at, id
    `

	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.Metadata,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return messages, nil
}

// ListAllMessages streams every message in the store in primary-key
// order, invoking fn per batch. Used by the reindex backfill.
func (s *Store) ListAllMessages(ctx context.Context, batchSize int, fn func(batch []MessageWithUseCase) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	query := `
        SELECT m.id, m.conversation_id, c.use_case_id, m.role, m.content, m.metadata, m.created_at
        FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE m.id > $1
        ORDER BY m.id
        LIMIT $2
    `

	var afterID int64
	for {
		rows, err := s.pool.Query(ctx, query, afterID, batchSize)
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}

		batch := make([]MessageWithUseCase, 0, batchSize)
		for rows.Next() {
			var m MessageWithUseCase
			if err := rows.Scan(
				&m.ID,
				&m.ConversationID,
				&m.UseCaseID,
				&m.Role,
				&m.Content,
				&m.Metadata,
				&m.CreatedAt,
			); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan message: %w", err)
			}
			batch = append(batch, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read messages: %w", err)
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		afterID = batch[len(batch)-1].ID
	}
}

// MessageWithUseCase is a message joined with its conversation's use
// case, the shape the search index wants.
type MessageWithUseCase struct {
	model.Message
	UseCaseID int64
}
