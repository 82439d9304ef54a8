package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)
	return svc
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(LLMConfig{}, nil)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc, err := NewLLMService(LLMConfig{APIKey: "k"}, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, 128000, svc.ContextWindow())
	assert.Positive(t, svc.NumTokens("hello there"))
}

func TestGenerate_Success(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		msgs := body["messages"].([]any)
		assert.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "short summary"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 5, "total_tokens": 47}
		}`))
	})

	resp, err := svc.Generate(context.Background(), driven.GenerateRequest{System: "be brief", Prompt: "long text", MaxTokens: 64})
	require.NoError(t, err)

	assert.Equal(t, "short summary", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, domain.TokenUsage{PromptTokens: 42, CompletionTokens: 5, TotalTokens: 47}, resp.Usage)
}

func TestGenerate_NoChoicesIsOutputShape(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	_, err := svc.Generate(context.Background(), driven.GenerateRequest{Prompt: "x"})
	assert.True(t, errors.Is(err, domain.ErrOutputShape))
}

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error": {"message": "failure", "type": "test"}}`))
		})

		_, err := svc.Generate(context.Background(), driven.GenerateRequest{Prompt: "x"})

		var collab *domain.CollaboratorError
		require.True(t, errors.As(err, &collab))
		assert.Equal(t, tt.status, collab.StatusCode)
		assert.Equal(t, tt.transient, domain.IsTransient(err))
	}
}
