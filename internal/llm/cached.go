package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

// ResponseCache memoizes completions. A hit short-circuits the provider
// call entirely; entries expire on their own, so a stale hit is bounded
// by the cache TTL.
type ResponseCache interface {
	GetLLMResponse(ctx context.Context, prompt, promptContext string) (string, bool)
	SetLLMResponse(ctx context.Context, prompt, promptContext, response string)
}

// CachedClient decorates a Client with response memoization. Identical
// prompt and context pairs reuse the stored completion instead of
// calling the provider again.
type CachedClient struct {
	inner Client
	cache ResponseCache
}

// NewCachedClient wraps a provider client with memoization.
func NewCachedClient(inner Client, cache ResponseCache) *CachedClient {
	return &CachedClient{
		inner: inner,
		cache: cache,
	}
}

// Name returns the wrapped provider's name.
func (c *CachedClient) Name() string {
	return c.inner.Name()
}

// Complete returns a memoized completion when one exists, otherwise
// calls the provider and memoizes the result. Provider errors are never
// cached.
func (c *CachedClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	prompt, promptContext := cacheInputs(req)

	if content, ok := c.cache.GetLLMResponse(ctx, prompt, promptContext); ok {
		return &CompletionResponse{
			Content: content,
			Model:   req.Model,
			Cached:  true,
		}, nil
	}

	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	if err != nil {
		metrics.RecordLLMRequest(req.Model, "error", time.Since(start).Seconds(), 0, 0)
		return nil, err
	}
	metrics.RecordLLMRequest(resp.Model, "ok", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	c.cache.SetLLMResponse(ctx, prompt, promptContext, resp.Content)
	return resp, nil
}

// cacheInputs splits a request into the newest message (the prompt) and
// everything else that shapes the answer (model plus prior history).
// Two requests memoize to the same entry only when both parts match.
func cacheInputs(req *CompletionRequest) (prompt, promptContext string) {
	if len(req.Messages) == 0 {
		return "", req.Model
	}
	last := req.Messages[len(req.Messages)-1]
	history, _ := json.Marshal(req.Messages[:len(req.Messages)-1])
	return last.Content, req.Model + ":" + string(history)
}
