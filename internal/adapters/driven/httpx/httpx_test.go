package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestDoJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["q"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := DoJSON(context.Background(), srv.Client(), Request{
		Collaborator: "test",
		URL:          srv.URL,
		Headers:      map[string]string{"Authorization": "Bearer k"},
		Body:         map[string]string{"q": "hi"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])
}

func TestDoJSON_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tt.status)
		}))

		err := DoJSON(context.Background(), srv.Client(), Request{Collaborator: "test", Op: "call", URL: srv.URL}, nil)
		srv.Close()

		var collab *domain.CollaboratorError
		require.True(t, errors.As(err, &collab))
		assert.Equal(t, tt.status, collab.StatusCode)
		assert.Equal(t, tt.transient, domain.IsTransient(err), "status %d", tt.status)
		assert.Contains(t, err.Error(), "nope")
	}
}

func TestDoJSON_BadJSONIsOutputShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]any
	err := DoJSON(context.Background(), srv.Client(), Request{Collaborator: "test", URL: srv.URL}, &out)

	assert.True(t, errors.Is(err, domain.ErrOutputShape))
}

func TestDoJSON_ConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := DoJSON(context.Background(), &http.Client{Timeout: time.Second}, Request{Collaborator: "test", URL: url}, nil)

	assert.True(t, domain.IsTransient(err))
}

func TestClassify(t *testing.T) {
	assert.True(t, Classify("x", "op", 0, context.DeadlineExceeded).Transient)
	assert.False(t, Classify("x", "op", 0, context.Canceled).Transient)
	assert.False(t, Classify("x", "op", 0, errors.New("plain")).Transient)
	assert.True(t, Classify("x", "op", 500, nil).Transient)
}
