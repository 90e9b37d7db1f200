package search

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadnav-ai/conversational-backend/internal/model"
)

func sampleMessageDoc() model.MessageDocument {
	return model.MessageDocument{
		MessageID:      42,
		ConversationID: 7,
		UseCaseID:      5,
		Role:           "user",
		Content:        "how do I deploy this",
		CreatedAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestIndexMessageUpsertsByID(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return esJSON(201, `{"result":"created"}`), nil
	}
	c := newTestClient(t, ft)

	ok := c.IndexMessage(context.Background(), sampleMessageDoc())
	require.True(t, ok)

	reqs := ft.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/conversational_bot_messages/_doc/42", reqs[0].Path)

	body := decodeBody(t, reqs[0].Body)
	assert.NotContains(t, body, "message_id", "id travels as the document id only")
	assert.Equal(t, float64(7), body["conversation_id"])
	assert.Equal(t, float64(5), body["use_case_id"])
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, map[string]any{}, body["metadata"], "nil metadata stored as empty object")
}

func TestIndexMessageReportsFailure(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}
	c := newTestClient(t, ft)

	assert.False(t, c.IndexMessage(context.Background(), sampleMessageDoc()))
}

func TestIndexMessageReportsErrorStatus(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return esJSON(400, `{"error":{"reason":"mapping conflict"}}`), nil
	}
	c := newTestClient(t, ft)

	assert.False(t, c.IndexMessage(context.Background(), sampleMessageDoc()))
}

func TestIndexConversationUpsertsByID(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return esJSON(200, `{"result":"updated"}`), nil
	}
	c := newTestClient(t, ft)

	ok := c.IndexConversation(context.Background(), model.ConversationDocument{
		ConversationID: 7,
		UseCaseID:      5,
		Title:          "Onboarding help",
		CreatedAt:      time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		MessageCount:   3,
	})
	require.True(t, ok)

	reqs := ft.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/conversational_bot_conversations/_doc/7", reqs[0].Path)

	body := decodeBody(t, reqs[0].Body)
	assert.Equal(t, "Onboarding help", body["title"])
	assert.Equal(t, float64(3), body["message_count"])
}

func TestBulkIndexMessagesCountsSuccesses(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/_bulk") {
			return esJSON(200, `{"took":3,"errors":false,"items":[
  {"index":{"_id":"1","status":201}},
  {"index":{"_id":"2","status":201}}
]}`), nil
		}
		return esJSON(404, ""), nil
	}
	c := newTestClient(t, ft)

	docs := []model.MessageDocument{sampleMessageDoc(), sampleMessageDoc()}
	docs[0].MessageID = 1
	docs[1].MessageID = 2

	success, failed := c.BulkIndexMessages(context.Background(), docs)

	assert.Equal(t, 2, success)
	assert.Equal(t, 0, failed)
}

func TestBulkIndexMessagesPartialFailure(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return esJSON(200, `{"took":3,"errors":true,"items":[
  {"index":{"_id":"1","status":201}},
  {"index":{"_id":"2","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}
]}`), nil
	}
	c := newTestClient(t, ft)

	docs := []model.MessageDocument{sampleMessageDoc(), sampleMessageDoc()}
	docs[0].MessageID = 1
	docs[1].MessageID = 2

	success, failed := c.BulkIndexMessages(context.Background(), docs)

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, failed)
}

func TestBulkIndexMessagesEmptyInput(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected for empty batch")
		return nil, nil
	}
	c := newTestClient(t, ft)

	success, failed := c.BulkIndexMessages(context.Background(), nil)

	assert.Zero(t, success)
	assert.Zero(t, failed)
}

func TestDeleteConversationDataCascades(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodDelete:
			return esJSON(200, `{"result":"deleted"}`), nil
		case strings.HasSuffix(req.URL.Path, "/_delete_by_query"):
			return esJSON(200, `{"deleted":3}`), nil
		default:
			return esJSON(404, ""), nil
		}
	}
	c := newTestClient(t, ft)

	ok := c.DeleteConversationData(context.Background(), 7)
	require.True(t, ok)

	reqs := ft.captured()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/conversational_bot_conversations/_doc/7", reqs[0].Path)
	assert.Equal(t, "/conversational_bot_messages/_delete_by_query", reqs[1].Path)

	body := decodeBody(t, reqs[1].Body)
	termQuery := body["query"].(map[string]any)["term"].(map[string]any)
	assert.Equal(t, float64(7), termQuery["conversation_id"])
}

func TestDeleteConversationDataToleratesMissingDocument(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodDelete {
			return esJSON(404, `{"result":"not_found"}`), nil
		}
		return esJSON(200, `{"deleted":0}`), nil
	}
	c := newTestClient(t, ft)

	ok := c.DeleteConversationData(context.Background(), 7)

	assert.True(t, ok, "retrying a cascade must converge")
	require.Len(t, ft.captured(), 2, "message cleanup still runs")
}

func TestDeleteConversationDataReportsFailure(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodDelete {
			return esJSON(200, `{"result":"deleted"}`), nil
		}
		return nil, errors.New("connection refused")
	}
	c := newTestClient(t, ft)

	assert.False(t, c.DeleteConversationData(context.Background(), 7))
}

func TestRefreshTargetsPrefix(t *testing.T) {
	ft := &fakeTransport{}
	ft.handler = func(req *http.Request) (*http.Response, error) {
		return esJSON(200, `{}`), nil
	}
	c := newTestClient(t, ft)

	c.Refresh(context.Background())

	reqs := ft.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/conversational_bot_*/_refresh", reqs[0].Path)
}
