package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

type capturedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// fakeTransport intercepts every HTTP request the Elasticsearch client
// makes, records it and serves a canned response.
type fakeTransport struct {
	mu       sync.Mutex
	handler  func(req *http.Request) (*http.Response, error)
	requests []capturedRequest
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}
	t.mu.Lock()
	t.requests = append(t.requests, capturedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	t.mu.Unlock()
	return t.handler(req)
}

func (t *fakeTransport) captured() []capturedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]capturedRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

// esJSON builds a canned Elasticsearch response. The product header is
// required or the client rejects the server.
func esJSON(status int, body string) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, ft *fakeTransport) *Client {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	c, err := New(Config{
		URL:         "http://elasticsearch.test:9200",
		IndexPrefix: "conversational_bot",
		Transport:   ft,
	}, log)
	require.NoError(t, err)
	return c
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestNewDefaultsIndexPrefix(t *testing.T) {
	log, err := logger.New("error")
	require.NoError(t, err)

	c, err := New(Config{URL: "http://elasticsearch.test:9200"}, log)
	require.NoError(t, err)

	assert.Equal(t, "conversational_bot_messages", c.MessagesIndex())
	assert.Equal(t, "conversational_bot_conversations", c.ConversationsIndex())
}

func TestEnsureIndicesCreatesMissing(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodHead {
			return esJSON(404, ""), nil
		}
		return esJSON(200, `{"acknowledged":true}`), nil
	}
	c := newTestClient(t, ft)

	err := c.EnsureIndices(context.Background())
	require.NoError(t, err)

	reqs := ft.captured()
	require.Len(t, reqs, 4, "exists+create per collection")

	assert.Equal(t, "/conversational_bot_messages", reqs[0].Path)
	assert.Equal(t, http.MethodPut, reqs[1].Method)
	messages := decodeBody(t, reqs[1].Body)
	props := messages["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "keyword", props["role"].(map[string]any)["type"])
	content := props["content"].(map[string]any)
	assert.Equal(t, "text", content["type"])
	assert.Equal(t, false, props["metadata"].(map[string]any)["enabled"])
	settings := messages["settings"].(map[string]any)
	assert.Equal(t, "5s", settings["refresh_interval"])

	conversations := decodeBody(t, reqs[3].Body)
	title := conversations["mappings"].(map[string]any)["properties"].(map[string]any)["title"].(map[string]any)
	suggest := title["fields"].(map[string]any)["suggest"].(map[string]any)
	assert.Equal(t, "completion", suggest["type"])
	assert.Equal(t, "simple", suggest["analyzer"])
}

func TestEnsureIndicesSkipsExisting(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return esJSON(200, ""), nil
	}
	c := newTestClient(t, ft)

	err := c.EnsureIndices(context.Background())
	require.NoError(t, err)

	for _, req := range ft.captured() {
		assert.Equal(t, http.MethodHead, req.Method)
	}
}

func TestPing(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return esJSON(200, ""), nil
	}
	c := newTestClient(t, ft)
	assert.True(t, c.Ping(context.Background()))

	ft.handler = func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}
	assert.False(t, c.Ping(context.Background()))
}

func TestStatsReportsClusterAndIndices(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(req.URL.Path, "_cluster/health"):
			return esJSON(200, `{"status":"yellow","cluster_name":"test"}`), nil
		case strings.Contains(req.URL.Path, "_stats"):
			return esJSON(200, `{"_all":{"primaries":{"docs":{"count":12},"store":{"size_in_bytes":4096}}}}`), nil
		default:
			return esJSON(404, ""), nil
		}
	}
	c := newTestClient(t, ft)

	stats := c.Stats(context.Background())

	assert.True(t, stats.Connected)
	assert.Equal(t, "yellow", stats.ClusterStatus)
	assert.Equal(t, int64(12), stats.MessagesCount)
	assert.Equal(t, int64(4096), stats.ConversationsSize)
}

func TestStatsReportsFailure(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}
	c := newTestClient(t, ft)

	stats := c.Stats(context.Background())

	assert.False(t, stats.Connected)
	assert.NotEmpty(t, stats.Error)
}
