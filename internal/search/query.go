package search

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

const (
	defaultSearchSize  = 20
	defaultSuggestSize = 5
)

// MessagesQuery carries full-text search parameters for messages. Zero
// values mean "no filter"; date bounds are inclusive and accept any
// timestamp format the index engine parses for date fields.
type MessagesQuery struct {
	Query          string
	UseCaseID      int64
	ConversationID int64
	Role           string
	FromDate       string
	ToDate         string
	Size           int
	From           int
}

// ConversationsQuery carries title search parameters.
type ConversationsQuery struct {
	Query     string
	UseCaseID int64
	Size      int
}

// SearchMessages runs a ranked full-text query over message content with
// exact-match filters, newest first, with highlighted fragments.
func (c *Client) SearchMessages(ctx context.Context, q MessagesQuery) model.MessageSearchResults {
	start := time.Now()
	results := model.MessageSearchResults{Hits: []model.MessageHit{}}

	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	must := []map[string]any{}
	if q.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     q.Query,
				"fields":    []string{"content^2"},
				"fuzziness": "AUTO",
				"operator":  "or",
			},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	filter := []map[string]any{}
	if q.UseCaseID != 0 {
		filter = append(filter, term("use_case_id", q.UseCaseID))
	}
	if q.ConversationID != 0 {
		filter = append(filter, term("conversation_id", q.ConversationID))
	}
	if q.Role != "" {
		filter = append(filter, term("role", q.Role))
	}
	if q.FromDate != "" || q.ToDate != "" {
		dateRange := map[string]any{}
		if q.FromDate != "" {
			dateRange["gte"] = q.FromDate
		}
		if q.ToDate != "" {
			dateRange["lte"] = q.ToDate
		}
		filter = append(filter, map[string]any{
			"range": map[string]any{"created_at": dateRange},
		})
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
		},
		"size": size,
		"from": from,
		"highlight": map[string]any{
			"fields": map[string]any{
				"content": map[string]any{
					"pre_tags":            []string{"<mark>"},
					"post_tags":           []string{"</mark>"},
					"fragment_size":       150,
					"number_of_fragments": 3,
				},
			},
		},
	}

	env, err := c.search(ctx, c.messagesIndex, body)
	if err != nil {
		c.degraded("search_messages", err)
		return results
	}

	results.Total = env.Hits.Total.Value
	for _, hit := range env.Hits.Hits {
		var src messageSource
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			c.log.Warn("skipping unreadable search hit",
				zap.String("document_id", hit.ID),
				zap.Error(err),
			)
			continue
		}
		id, _ := strconv.ParseInt(hit.ID, 10, 64)
		results.Hits = append(results.Hits, model.MessageHit{
			Document: model.MessageDocument{
				MessageID:      id,
				ConversationID: src.ConversationID,
				UseCaseID:      src.UseCaseID,
				Role:           src.Role,
				Content:        src.Content,
				Metadata:       src.Metadata,
				CreatedAt:      src.CreatedAt,
			},
			Score:      hit.Score,
			Highlights: hit.Highlight,
		})
	}

	metrics.RecordSearchOp("search_messages", "ok", time.Since(start).Seconds())
	return results
}

// SearchConversations runs a boosted title search, most recently updated
// first.
func (c *Client) SearchConversations(ctx context.Context, q ConversationsQuery) model.ConversationSearchResults {
	start := time.Now()
	results := model.ConversationSearchResults{Hits: []model.ConversationHit{}}

	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}

	filter := []map[string]any{}
	if q.UseCaseID != 0 {
		filter = append(filter, term("use_case_id", q.UseCaseID))
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{
						"multi_match": map[string]any{
							"query":     q.Query,
							"fields":    []string{"title^3"},
							"fuzziness": "AUTO",
						},
					},
				},
				"filter": filter,
			},
		},
		"sort": []map[string]any{
			{"updated_at": map[string]any{"order": "desc"}},
		},
		"size": size,
	}

	env, err := c.search(ctx, c.convsIndex, body)
	if err != nil {
		c.degraded("search_conversations", err)
		return results
	}

	results.Total = env.Hits.Total.Value
	for _, hit := range env.Hits.Hits {
		var src conversationSource
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			c.log.Warn("skipping unreadable search hit",
				zap.String("document_id", hit.ID),
				zap.Error(err),
			)
			continue
		}
		results.Hits = append(results.Hits, model.ConversationHit{
			Document: model.ConversationDocument{
				ConversationID: src.ConversationID,
				UseCaseID:      src.UseCaseID,
				Title:          src.Title,
				CreatedAt:      src.CreatedAt,
				UpdatedAt:      src.UpdatedAt,
				MessageCount:   src.MessageCount,
			},
			Score: hit.Score,
		})
	}

	metrics.RecordSearchOp("search_conversations", "ok", time.Since(start).Seconds())
	return results
}

// SuggestTitles returns deduplicated title completions for a prefix.
func (c *Client) SuggestTitles(ctx context.Context, prefix string, size int) []string {
	start := time.Now()
	if size <= 0 {
		size = defaultSuggestSize
	}

	body := map[string]any{
		"suggest": map[string]any{
			"conversation-suggest": map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           "title.suggest",
					"size":            size,
					"skip_duplicates": true,
				},
			},
		},
	}

	env, err := c.search(ctx, c.convsIndex, body)
	if err != nil {
		c.degraded("suggest_conversations", err)
		return []string{}
	}

	out := []string{}
	if entries := env.Suggest["conversation-suggest"]; len(entries) > 0 {
		for _, option := range entries[0].Options {
			out = append(out, option.Text)
		}
	}

	metrics.RecordSearchOp("suggest_conversations", "ok", time.Since(start).Seconds())
	return out
}

// MessageStats computes aggregate analytics inside the index engine. A
// zero useCaseID aggregates across all use cases.
func (c *Client) MessageStats(ctx context.Context, useCaseID int64) model.MessageStats {
	start := time.Now()
	stats := model.MessageStats{
		MessagesPerDay: []model.DateBucket{},
		MessagesByRole: []model.TermBucket{},
	}

	var query map[string]any
	if useCaseID != 0 {
		query = map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{term("use_case_id", useCaseID)},
			},
		}
	} else {
		query = map[string]any{"match_all": map[string]any{}}
	}

	body := map[string]any{
		"query": query,
		"size":  0,
		"aggs": map[string]any{
			"messages_per_day": map[string]any{
				"date_histogram": map[string]any{
					"field":             "created_at",
					"calendar_interval": "day",
				},
			},
			"messages_by_role": map[string]any{
				"terms": map[string]any{"field": "role"},
			},
			"total_conversations": map[string]any{
				"cardinality": map[string]any{"field": "conversation_id"},
			},
		},
	}

	env, err := c.search(ctx, c.messagesIndex, body)
	if err != nil {
		c.degraded("message_stats", err)
		return stats
	}

	stats.TotalMessages = env.Hits.Total.Value
	stats.TotalConversations = env.Aggregations.TotalConversations.Value
	for _, b := range env.Aggregations.MessagesPerDay.Buckets {
		stats.MessagesPerDay = append(stats.MessagesPerDay, model.DateBucket{
			Date:  b.KeyAsString,
			Count: b.DocCount,
		})
	}
	for _, b := range env.Aggregations.MessagesByRole.Buckets {
		stats.MessagesByRole = append(stats.MessagesByRole, model.TermBucket{
			Key:   b.Key,
			Count: b.DocCount,
		})
	}

	metrics.RecordSearchOp("message_stats", "ok", time.Since(start).Seconds())
	return stats
}

// searchEnvelope is the subset of the search response the client reads.
type searchEnvelope struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		MessagesPerDay struct {
			Buckets []struct {
				KeyAsString string `json:"key_as_string"`
				DocCount    int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"messages_per_day"`
		MessagesByRole struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"messages_by_role"`
		TotalConversations struct {
			Value int64 `json:"value"`
		} `json:"total_conversations"`
	} `json:"aggregations"`
	Suggest map[string][]struct {
		Options []struct {
			Text string `json:"text"`
		} `json:"options"`
	} `json:"suggest"`
}

type searchHit struct {
	ID        string              `json:"_id"`
	Score     float64             `json:"_score"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

func (c *Client) search(ctx context.Context, index string, body map[string]any) (*searchEnvelope, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res.String())
	}

	var env searchEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}
