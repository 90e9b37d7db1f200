// Package search mirrors primary-store writes into Elasticsearch and
// serves the query shapes the primary store cannot: ranked full-text
// search, fuzzy matching, autocomplete and aggregate analytics.
//
// The index is an auxiliary store. Reads fail closed with empty results
// and writes report success flags instead of raising, so a degraded
// cluster disables search features without touching chat availability.
// Callers must treat an empty result as "unknown", not "confirmed
// absent", while the index is down.
package search

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

// Config holds the configuration for creating a Client.
type Config struct {
	// URL is the Elasticsearch node URL.
	URL string

	// IndexPrefix namespaces the collections, e.g. "conversational_bot"
	// yields conversational_bot_messages and
	// conversational_bot_conversations.
	IndexPrefix string

	// Transport overrides the HTTP transport. Used by tests.
	Transport http.RoundTripper
}

// Client wraps the Elasticsearch client for the two collections.
type Client struct {
	es            *elasticsearch.Client
	indexPrefix   string
	messagesIndex string
	convsIndex    string
	log           *logger.Logger
}

// New creates a Client. It does not contact the cluster; call
// EnsureIndices or Ping to probe it.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  []string{cfg.URL},
		MaxRetries: 3,
		Transport:  cfg.Transport,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = "conversational_bot"
	}

	return &Client{
		es:            es,
		indexPrefix:   prefix,
		messagesIndex: prefix + "_messages",
		convsIndex:    prefix + "_conversations",
		log:           log,
	}, nil
}

// MessagesIndex returns the messages collection name.
func (c *Client) MessagesIndex() string {
	return c.messagesIndex
}

// ConversationsIndex returns the conversations collection name.
func (c *Client) ConversationsIndex() string {
	return c.convsIndex
}

// Ping tests the cluster connection.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

func (c *Client) degraded(op string, err error, fields ...zap.Field) {
	metrics.SearchDegradedTotal.WithLabelValues(op).Inc()
	fields = append(fields, zap.String("op", op), zap.Error(err))
	c.log.Warn("search index operation failed", fields...)
}

// responseError wraps a raw Elasticsearch error response body.
func responseError(s string) error {
	return errors.New(s)
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}
