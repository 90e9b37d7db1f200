// Package cache provides response caching on top of the key-value store.
//
// Three families of entries share the store: conversation message
// snapshots invalidated on write, memoized LLM responses keyed by a
// fingerprint of prompt and context, and a generic memoization helper
// for expensive lookups. All entries expire on their own; invalidation
// is an optimization, not a correctness requirement.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

const (
	// DefaultConversationTTL bounds staleness of message snapshots.
	DefaultConversationTTL = 10 * time.Minute

	// DefaultLLMTTL bounds reuse of memoized LLM responses.
	DefaultLLMTTL = time.Hour

	// DefaultMemoTTL applies to generic memoized values.
	DefaultMemoTTL = 10 * time.Minute
)

// Store is the slice of the key-value client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
}

// Config holds cache entry lifetimes.
type Config struct {
	ConversationTTL time.Duration
	LLMTTL          time.Duration
	MemoTTL         time.Duration
}

// Cache layers response caching over a Store.
type Cache struct {
	store           Store
	conversationTTL time.Duration
	llmTTL          time.Duration
	memoTTL         time.Duration
	log             *logger.Logger
}

// New creates a Cache. Zero lifetimes fall back to the defaults.
func New(store Store, cfg Config, log *logger.Logger) *Cache {
	if cfg.ConversationTTL == 0 {
		cfg.ConversationTTL = DefaultConversationTTL
	}
	if cfg.LLMTTL == 0 {
		cfg.LLMTTL = DefaultLLMTTL
	}
	if cfg.MemoTTL == 0 {
		cfg.MemoTTL = DefaultMemoTTL
	}
	return &Cache{
		store:           store,
		conversationTTL: cfg.ConversationTTL,
		llmTTL:          cfg.LLMTTL,
		memoTTL:         cfg.MemoTTL,
		log:             log,
	}
}

// GetMessages returns the cached message snapshot for a conversation.
// A corrupt snapshot is dropped and reported as a miss.
func (c *Cache) GetMessages(ctx context.Context, conversationID int64) ([]model.Message, bool) {
	key := messagesKey(conversationID)
	raw, ok := c.store.Get(ctx, key)
	if !ok {
		metrics.RecordCacheMiss("conversation")
		return nil, false
	}

	var msgs []model.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		c.log.Warn("dropping corrupt message snapshot",
			zap.Int64("conversation_id", conversationID),
			zap.Error(err),
		)
		c.store.Delete(ctx, key)
		metrics.RecordCacheMiss("conversation")
		return nil, false
	}

	metrics.RecordCacheHit("conversation")
	return msgs, true
}

// SetMessages stores a conversation's message snapshot.
func (c *Cache) SetMessages(ctx context.Context, conversationID int64, msgs []model.Message) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		c.log.Warn("failed to encode message snapshot",
			zap.Int64("conversation_id", conversationID),
			zap.Error(err),
		)
		return
	}
	c.store.Set(ctx, messagesKey(conversationID), string(raw), c.conversationTTL)
}

// InvalidateMessages drops the snapshot for a conversation. Called after
// every write so the next read rebuilds from the primary store.
func (c *Cache) InvalidateMessages(ctx context.Context, conversationID int64) {
	c.store.Delete(ctx, messagesKey(conversationID))
}

// GetLLMResponse returns a memoized LLM response for the exact prompt
// and context pair.
func (c *Cache) GetLLMResponse(ctx context.Context, prompt, promptContext string) (string, bool) {
	val, ok := c.store.Get(ctx, llmKey(prompt, promptContext))
	if !ok {
		metrics.RecordCacheMiss("llm")
		return "", false
	}
	metrics.RecordCacheHit("llm")
	return val, true
}

// SetLLMResponse memoizes an LLM response.
func (c *Cache) SetLLMResponse(ctx context.Context, prompt, promptContext, response string) {
	c.store.Set(ctx, llmKey(prompt, promptContext), response, c.llmTTL)
}

// Memoize returns the cached value under name and args, or runs fill and
// caches its result. The boolean reports whether the value came from the
// cache. Fill errors propagate without caching. A zero ttl uses the
// default memo lifetime.
func (c *Cache) Memoize(ctx context.Context, name, args string, ttl time.Duration, fill func(context.Context) (string, error)) (string, bool, error) {
	key := memoKey(name, args)
	if val, ok := c.store.Get(ctx, key); ok {
		metrics.RecordCacheHit("memo")
		return val, true, nil
	}
	metrics.RecordCacheMiss("memo")

	val, err := fill(ctx)
	if err != nil {
		return "", false, err
	}
	if ttl == 0 {
		ttl = c.memoTTL
	}
	c.store.Set(ctx, key, val, ttl)
	return val, false, nil
}

func messagesKey(conversationID int64) string {
	return fmt.Sprintf("conv:%d:messages", conversationID)
}

func llmKey(prompt, promptContext string) string {
	return "llm:response:" + fingerprint(prompt+":"+promptContext)
}

func memoKey(name, args string) string {
	return "cache:" + fingerprint(name+":"+args)
}

func fingerprint(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
