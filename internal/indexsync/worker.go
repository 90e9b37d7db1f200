// Package indexsync drains the index sync queue, mirroring primary-store
// writes into the search index. Delivery is at-least-once: every handler
// upserts by primary key, so redelivered events converge instead of
// duplicating documents.
package indexsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

const (
	fetchBatch = 32
	fetchWait  = 5 * time.Second
	retryDelay = time.Second
)

// ErrBadEvent marks an event that can never succeed. The worker
// terminates these instead of redelivering them forever.
var ErrBadEvent = errors.New("unprocessable index event")

// Indexer applies index events to the search backend. Implementations
// report success as a bool so the worker can decide between ack and
// redelivery without caring why the write failed.
type Indexer interface {
	IndexMessage(ctx context.Context, doc model.MessageDocument) bool
	IndexConversation(ctx context.Context, doc model.ConversationDocument) bool
	DeleteConversationData(ctx context.Context, conversationID int64) bool
}

// Worker consumes index events from the durable sync consumer.
type Worker struct {
	consumer jetstream.Consumer
	indexer  Indexer
	logger   *logger.Logger
}

// NewWorker creates a sync worker.
func NewWorker(consumer jetstream.Consumer, indexer Indexer, log *logger.Logger) *Worker {
	return &Worker{
		consumer: consumer,
		indexer:  indexer,
		logger:   log,
	}
}

// Run fetches and processes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("index sync worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("index sync worker stopped")
			return
		default:
		}

		batch, err := w.consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warn("failed to fetch index events", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}

		for msg := range batch.Messages() {
			w.process(ctx, msg)
		}

		if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn("index event batch error", zap.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, msg jetstream.Msg) {
	err := w.Handle(ctx, msg.Data())
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, ErrBadEvent):
		w.logger.Error("dropping unprocessable index event", zap.Error(err))
		_ = msg.Term()
	default:
		w.logger.Warn("index event failed, will redeliver", zap.Error(err))
		_ = msg.Nak()
	}
}

// Handle applies a single encoded index event. A nil return means the
// event is durably applied and safe to ack. ErrBadEvent means the event
// is malformed and must not be redelivered. Any other error requests
// redelivery.
func (w *Worker) Handle(ctx context.Context, data []byte) error {
	var event model.IndexEvent
	if err := json.Unmarshal(data, &event); err != nil {
		metrics.SyncEventsTotal.WithLabelValues("unknown", "dropped").Inc()
		return fmt.Errorf("%w: %v", ErrBadEvent, err)
	}

	outcome := "ok"
	err := w.apply(ctx, &event)
	switch {
	case errors.Is(err, ErrBadEvent):
		outcome = "dropped"
	case err != nil:
		outcome = "retried"
	}
	metrics.SyncEventsTotal.WithLabelValues(string(event.Type), outcome).Inc()

	return err
}

func (w *Worker) apply(ctx context.Context, event *model.IndexEvent) error {
	switch event.Type {
	case model.IndexEventMessage:
		if event.Message == nil {
			return fmt.Errorf("%w: %s without message payload", ErrBadEvent, event.Type)
		}
		if !w.indexer.IndexMessage(ctx, *event.Message) {
			return fmt.Errorf("index message %d failed", event.Message.MessageID)
		}
		return nil

	case model.IndexEventConversation:
		if event.Conversation == nil {
			return fmt.Errorf("%w: %s without conversation payload", ErrBadEvent, event.Type)
		}
		if !w.indexer.IndexConversation(ctx, *event.Conversation) {
			return fmt.Errorf("index conversation %d failed", event.Conversation.ConversationID)
		}
		return nil

	case model.IndexEventDeleteConversation:
		if event.ConversationID == 0 {
			return fmt.Errorf("%w: %s without conversation id", ErrBadEvent, event.Type)
		}
		if !w.indexer.DeleteConversationData(ctx, event.ConversationID) {
			return fmt.Errorf("delete conversation %d index data failed", event.ConversationID)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown type %q", ErrBadEvent, event.Type)
	}
}
