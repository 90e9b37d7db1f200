package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/squadnav-ai/conversational-backend/internal/model"
)

const (
	// StreamName is the name of the index sync stream.
	StreamName = "INDEX_SYNC"

	// ConsumerName is the durable consumer drained by the sync worker.
	ConsumerName = "indexer"

	// SubjectPrefix is the prefix for all index sync subjects.
	SubjectPrefix = "index"
)

// StreamManager handles JetStream stream operations for the index sync
// queue. Events published here mirror primary-store writes into the
// search index; consumers must tolerate redelivery.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the index sync stream exists with proper configuration.
// Work-queue retention: each event is removed once the sync worker acks it.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// Create stream
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Search index mirror events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EnsureConsumer creates or updates the durable consumer used by the sync
// worker. Unacked events are redelivered after the ack wait elapses.
func (m *StreamManager) EnsureConsumer(ctx context.Context) (jetstream.Consumer, error) {
	consumer, err := m.client.JetStream().CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: fmt.Sprintf("%s.>", SubjectPrefix),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    10,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return consumer, nil
}

// EventSubject returns the subject for an index event type.
func EventSubject(eventType model.IndexEventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// PublishEvent publishes an index event to the sync stream. The event ID
// doubles as the JetStream message ID so publish retries deduplicate.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.IndexEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := EventSubject(event.Type)

	_, err = m.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// StreamStats reports sync queue depth.
type StreamStats struct {
	Messages uint64
	Bytes    uint64
	Pending  uint64
}

// Stats returns stream depth and the sync consumer's pending count.
func (m *StreamManager) Stats(ctx context.Context) (StreamStats, error) {
	var stats StreamStats

	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return stats, fmt.Errorf("failed to get stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to get stream info: %w", err)
	}
	stats.Messages = info.State.Msgs
	stats.Bytes = info.State.Bytes

	if consumer, err := stream.Consumer(ctx, ConsumerName); err == nil {
		if ci, err := consumer.Info(ctx); err == nil {
			stats.Pending = ci.NumPending
		}
	}

	return stats, nil
}
