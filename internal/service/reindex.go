package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/internal/primary"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

// ReindexSource is the slice of the primary store the backfill reads.
type ReindexSource interface {
	ListAllConversations(ctx context.Context) ([]primary.ConversationWithCount, error)
	ListAllMessages(ctx context.Context, batchSize int, fn func(batch []primary.MessageWithUseCase) error) error
}

// SearchWriter is the slice of the search client the backfill writes.
type SearchWriter interface {
	IndexConversation(ctx context.Context, doc model.ConversationDocument) bool
	BulkIndexMessages(ctx context.Context, docs []model.MessageDocument) (int, int)
	Refresh(ctx context.Context)
}

// ReindexReport summarizes a backfill run.
type ReindexReport struct {
	Conversations       int `json:"conversations"`
	ConversationsFailed int `json:"conversations_failed"`
	Messages            int `json:"messages"`
	MessagesFailed      int `json:"messages_failed"`
}

// ReindexService rebuilds the search index from the primary store. Used
// to reconcile after partial index loss or sustained search downtime;
// upserts by primary id make repeated runs safe.
type ReindexService struct {
	source    ReindexSource
	search    SearchWriter
	batchSize int
	logger    *logger.Logger
}

// NewReindexService creates a reindex service.
func NewReindexService(source ReindexSource, search SearchWriter, batchSize int, log *logger.Logger) *ReindexService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ReindexService{
		source:    source,
		search:    search,
		batchSize: batchSize,
		logger:    log,
	}
}

// Run backfills both collections and forces a refresh so the rebuilt
// documents are searchable immediately.
func (s *ReindexService) Run(ctx context.Context) (ReindexReport, error) {
	var report ReindexReport

	conversations, err := s.source.ListAllConversations(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read conversations: %w", err)
	}
	for _, conv := range conversations {
		doc := model.ConversationDocument{
			ConversationID: conv.ID,
			UseCaseID:      conv.UseCaseID,
			Title:          conv.Title,
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
			MessageCount:   conv.MessageCount,
		}
		if s.search.IndexConversation(ctx, doc) {
			report.Conversations++
		} else {
			report.ConversationsFailed++
		}
	}

	err = s.source.ListAllMessages(ctx, s.batchSize, func(batch []primary.MessageWithUseCase) error {
		docs := make([]model.MessageDocument, len(batch))
		for i, m := range batch {
			docs[i] = model.MessageDocument{
				MessageID:      m.ID,
				ConversationID: m.ConversationID,
				UseCaseID:      m.UseCaseID,
				Role:           string(m.Role),
				Content:        m.Content,
				Metadata:       m.Metadata,
				CreatedAt:      m.CreatedAt,
			}
		}
		succeeded, failed := s.search.BulkIndexMessages(ctx, docs)
		report.Messages += succeeded
		report.MessagesFailed += failed
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to read messages: %w", err)
	}

	s.search.Refresh(ctx)

	s.logger.Info("reindex completed",
		zap.Int("conversations", report.Conversations),
		zap.Int("conversations_failed", report.ConversationsFailed),
		zap.Int("messages", report.Messages),
		zap.Int("messages_failed", report.MessagesFailed),
	)

	return report, nil
}
