package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

// messageSource is the stored document body. The message id travels as
// the external document id, not as a source field, so re-indexing the
// same message overwrites in place.
type messageSource struct {
	ConversationID int64           `json:"conversation_id"`
	UseCaseID      int64           `json:"use_case_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	CreatedAt      time.Time       `json:"created_at"`
	Metadata       json.RawMessage `json:"metadata"`
}

type conversationSource struct {
	ConversationID int64     `json:"conversation_id"`
	UseCaseID      int64     `json:"use_case_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
}

func newMessageSource(doc model.MessageDocument) messageSource {
	metadata := doc.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	return messageSource{
		ConversationID: doc.ConversationID,
		UseCaseID:      doc.UseCaseID,
		Role:           doc.Role,
		Content:        doc.Content,
		CreatedAt:      doc.CreatedAt,
		Metadata:       metadata,
	}
}

// IndexMessage upserts a single message document keyed by its
// primary-store id. Returns false when the write did not take.
func (c *Client) IndexMessage(ctx context.Context, doc model.MessageDocument) bool {
	start := time.Now()
	body, err := json.Marshal(newMessageSource(doc))
	if err != nil {
		c.degraded("index_message", err, zap.Int64("message_id", doc.MessageID))
		return false
	}

	res, err := c.es.Index(
		c.messagesIndex,
		bytes.NewReader(body),
		c.es.Index.WithDocumentID(docID(doc.MessageID)),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		c.degraded("index_message", err, zap.Int64("message_id", doc.MessageID))
		return false
	}
	defer res.Body.Close()
	if res.IsError() {
		c.degraded("index_message", responseError(res.String()), zap.Int64("message_id", doc.MessageID))
		return false
	}

	metrics.RecordSearchOp("index_message", "ok", time.Since(start).Seconds())
	return true
}

// IndexConversation upserts a conversation document keyed by its
// primary-store id.
func (c *Client) IndexConversation(ctx context.Context, doc model.ConversationDocument) bool {
	start := time.Now()
	body, err := json.Marshal(conversationSource{
		ConversationID: doc.ConversationID,
		UseCaseID:      doc.UseCaseID,
		Title:          doc.Title,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		MessageCount:   doc.MessageCount,
	})
	if err != nil {
		c.degraded("index_conversation", err, zap.Int64("conversation_id", doc.ConversationID))
		return false
	}

	res, err := c.es.Index(
		c.convsIndex,
		bytes.NewReader(body),
		c.es.Index.WithDocumentID(docID(doc.ConversationID)),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		c.degraded("index_conversation", err, zap.Int64("conversation_id", doc.ConversationID))
		return false
	}
	defer res.Body.Close()
	if res.IsError() {
		c.degraded("index_conversation", responseError(res.String()), zap.Int64("conversation_id", doc.ConversationID))
		return false
	}

	metrics.RecordSearchOp("index_conversation", "ok", time.Since(start).Seconds())
	return true
}

// BulkIndexMessages upserts a batch of message documents. Documents
// succeed or fail independently; the return is (success, failure)
// counts, and callers reconcile against len(docs) to detect partial
// loss.
func (c *Client) BulkIndexMessages(ctx context.Context, docs []model.MessageDocument) (int, int) {
	if len(docs) == 0 {
		return 0, 0
	}
	start := time.Now()

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client: c.es,
		Index:  c.messagesIndex,
	})
	if err != nil {
		c.degraded("bulk_index_messages", err)
		return 0, len(docs)
	}

	addFailed := 0
	for _, doc := range docs {
		body, err := json.Marshal(newMessageSource(doc))
		if err != nil {
			addFailed++
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: docID(doc.MessageID),
			Body:       bytes.NewReader(body),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				c.log.Warn("bulk index item failed",
					zap.String("document_id", item.DocumentID),
					zap.String("reason", res.Error.Reason),
					zap.Error(err),
				)
			},
		})
		if err != nil {
			addFailed++
		}
	}

	if err := bi.Close(ctx); err != nil {
		c.degraded("bulk_index_messages", err)
	}

	stats := bi.Stats()
	success := int(stats.NumFlushed)
	failed := int(stats.NumFailed) + addFailed

	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	metrics.RecordSearchOp("bulk_index_messages", outcome, time.Since(start).Seconds())
	return success, failed
}

// DeleteConversationData removes a conversation document and then all
// message documents belonging to it. The two steps are not atomic; a
// failure between them leaves message documents behind, and the caller
// retries the whole cascade, which converges because the conversation
// delete tolerates an already-missing document.
func (c *Client) DeleteConversationData(ctx context.Context, conversationID int64) bool {
	start := time.Now()

	res, err := c.es.Delete(
		c.convsIndex,
		docID(conversationID),
		c.es.Delete.WithContext(ctx),
	)
	if err != nil {
		c.degraded("delete_conversation", err, zap.Int64("conversation_id", conversationID))
		return false
	}
	// A missing conversation document is fine; the cascade may be a retry.
	if res.StatusCode != 404 && res.IsError() {
		msg := res.String()
		res.Body.Close()
		c.degraded("delete_conversation", responseError(msg), zap.Int64("conversation_id", conversationID))
		return false
	}
	res.Body.Close()

	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{"conversation_id": conversationID},
		},
	})
	res, err = c.es.DeleteByQuery(
		[]string{c.messagesIndex},
		bytes.NewReader(body),
		c.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		c.degraded("delete_conversation", err, zap.Int64("conversation_id", conversationID))
		return false
	}
	defer res.Body.Close()
	if res.IsError() {
		c.degraded("delete_conversation", responseError(res.String()), zap.Int64("conversation_id", conversationID))
		return false
	}

	metrics.RecordSearchOp("delete_conversation", "ok", time.Since(start).Seconds())
	return true
}
