package search

import (
	"context"
	"encoding/json"
)

// Stats is a point-in-time snapshot of cluster and index health for the
// infrastructure health endpoint.
type Stats struct {
	Connected          bool   `json:"connected"`
	ClusterStatus      string `json:"cluster_status,omitempty"`
	MessagesCount      int64  `json:"messages_count"`
	MessagesSize       int64  `json:"messages_size"`
	ConversationsCount int64  `json:"conversations_count"`
	ConversationsSize  int64  `json:"conversations_size"`
	Error              string `json:"error,omitempty"`
}

type clusterHealth struct {
	Status string `json:"status"`
}

type indexStats struct {
	All struct {
		Primaries struct {
			Docs struct {
				Count int64 `json:"count"`
			} `json:"docs"`
			Store struct {
				SizeInBytes int64 `json:"size_in_bytes"`
			} `json:"store"`
		} `json:"primaries"`
	} `json:"_all"`
}

// Stats gathers cluster status and per-collection document counts. It
// never returns an error; an unreachable cluster is reported through the
// Connected and Error fields.
func (c *Client) Stats(ctx context.Context) Stats {
	var health clusterHealth
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return Stats{Connected: false, Error: err.Error()}
	}
	if res.IsError() {
		msg := res.String()
		res.Body.Close()
		return Stats{Connected: false, Error: msg}
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		res.Body.Close()
		return Stats{Connected: false, Error: err.Error()}
	}
	res.Body.Close()

	messages, err := c.indexStats(ctx, c.messagesIndex)
	if err != nil {
		return Stats{Connected: false, Error: err.Error()}
	}
	conversations, err := c.indexStats(ctx, c.convsIndex)
	if err != nil {
		return Stats{Connected: false, Error: err.Error()}
	}

	return Stats{
		Connected:          true,
		ClusterStatus:      health.Status,
		MessagesCount:      messages.All.Primaries.Docs.Count,
		MessagesSize:       messages.All.Primaries.Store.SizeInBytes,
		ConversationsCount: conversations.All.Primaries.Docs.Count,
		ConversationsSize:  conversations.All.Primaries.Store.SizeInBytes,
	}
}

func (c *Client) indexStats(ctx context.Context, index string) (*indexStats, error) {
	res, err := c.es.Indices.Stats(
		c.es.Indices.Stats.WithContext(ctx),
		c.es.Indices.Stats.WithIndex(index),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res.String())
	}

	var stats indexStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
