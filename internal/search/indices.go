package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// messagesMapping keeps content analyzed for relevance with an exact
// keyword subfield, and leaves metadata stored but unindexed.
const messagesMapping = `{
  "mappings": {
    "properties": {
      "conversation_id": {"type": "integer"},
      "use_case_id": {"type": "integer"},
      "role": {"type": "keyword"},
      "content": {
        "type": "text",
        "analyzer": "standard",
        "fields": {
          "keyword": {"type": "keyword", "ignore_above": 256}
        }
      },
      "created_at": {"type": "date"},
      "metadata": {"type": "object", "enabled": false}
    }
  },
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "refresh_interval": "5s"
  }
}`

// conversationsMapping adds a completion subfield on title for the
// autocomplete suggester.
const conversationsMapping = `{
  "mappings": {
    "properties": {
      "conversation_id": {"type": "integer"},
      "use_case_id": {"type": "integer"},
      "title": {
        "type": "text",
        "analyzer": "standard",
        "fields": {
          "keyword": {"type": "keyword", "ignore_above": 256},
          "suggest": {"type": "completion", "analyzer": "simple"}
        }
      },
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"},
      "message_count": {"type": "integer"}
    }
  },
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  }
}`

// EnsureIndices creates both collections with their mappings if they do
// not exist yet. Safe to call on every startup.
func (c *Client) EnsureIndices(ctx context.Context) error {
	if err := c.ensureIndex(ctx, c.messagesIndex, messagesMapping); err != nil {
		return fmt.Errorf("failed to ensure index %s: %w", c.messagesIndex, err)
	}
	if err := c.ensureIndex(ctx, c.convsIndex, conversationsMapping); err != nil {
		return fmt.Errorf("failed to ensure index %s: %w", c.convsIndex, err)
	}
	return nil
}

func (c *Client) ensureIndex(ctx context.Context, name, mapping string) error {
	res, err := c.es.Indices.Exists(
		[]string{name},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", name, res.String())
	}

	c.log.Info("created search index", zap.String("index", name))
	return nil
}

// Refresh forces a refresh of all collections under the prefix, making
// pending writes visible to search immediately. Intended for tests and
// the reindex tool, not the request path.
func (c *Client) Refresh(ctx context.Context) {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.indexPrefix+"_*"),
	)
	if err != nil {
		c.degraded("refresh", err)
		return
	}
	res.Body.Close()
}
