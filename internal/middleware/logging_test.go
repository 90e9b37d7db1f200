package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

func TestLoggingMintsCorrelationID(t *testing.T) {
	log, err := logger.New("error")
	require.NoError(t, err)

	var fromContext string
	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetCorrelationID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, fromContext)
	assert.Equal(t, fromContext, w.Header().Get("X-Correlation-ID"))
}

func TestLoggingPropagatesCallerCorrelationID(t *testing.T) {
	log, err := logger.New("error")
	require.NoError(t, err)

	var fromContext string
	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetCorrelationID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Correlation-ID", "caller-supplied")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "caller-supplied", fromContext)
	assert.Equal(t, "caller-supplied", w.Header().Get("X-Correlation-ID"))
}

func TestValidateMessageContent(t *testing.T) {
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent(string([]byte{0xff, 0xfe})))
	assert.NoError(t, ValidateMessageContent("hello"))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseID("abc")
	assert.Error(t, err)

	_, err = ParseID("-1")
	assert.Error(t, err)

	_, err = ParseID("0")
	assert.Error(t, err)
}
