package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadnav-ai/conversational-backend/internal/service"
)

type fakeBackfiller struct {
	report service.ReindexReport
	err    error
	calls  int
}

func (f *fakeBackfiller) Run(ctx context.Context) (service.ReindexReport, error) {
	f.calls++
	return f.report, f.err
}

func TestReindexReturnsReport(t *testing.T) {
	fake := &fakeBackfiller{
		report: service.ReindexReport{Conversations: 4, Messages: 20, MessagesFailed: 1},
	}
	h := NewReindexHandler(fake, testLogger(t))

	rec := httptest.NewRecorder()
	h.Reindex(rec, httptest.NewRequest(http.MethodPost, "/admin/reindex", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fake.calls)
	assert.JSONEq(t,
		`{"conversations":4,"conversations_failed":0,"messages":20,"messages_failed":1}`,
		rec.Body.String())
}

func TestReindexFailureIs500(t *testing.T) {
	fake := &fakeBackfiller{err: errors.New("primary unreachable")}
	h := NewReindexHandler(fake, testLogger(t))

	rec := httptest.NewRecorder()
	h.Reindex(rec, httptest.NewRequest(http.MethodPost, "/admin/reindex", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"reindex failed"}`, rec.Body.String())
}
