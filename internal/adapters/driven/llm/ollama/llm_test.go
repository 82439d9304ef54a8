package ollama

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

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{}, nil)

	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultLLMContextWindow, svc.ContextWindow())
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, 50, req.Options.NumPredict)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:           "llama3.2",
			Message:         chatMessage{Role: "assistant", Content: "summary"},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 20,
			EvalCount:       3,
		})
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL}, nil)
	resp, err := svc.Generate(context.Background(), driven.GenerateRequest{
		System:    "sys",
		Prompt:    "text",
		MaxTokens: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, "summary", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, domain.TokenUsage{PromptTokens: 20, CompletionTokens: 3, TotalTokens: 23}, resp.Usage)
}

func TestGenerate_IncompleteIsOutputShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "par"}, "done": false}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL}, nil)
	_, err := svc.Generate(context.Background(), driven.GenerateRequest{Prompt: "x"})

	assert.True(t, errors.Is(err, domain.ErrOutputShape))
}

func TestGenerate_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL}, nil)
	_, err := svc.Generate(context.Background(), driven.GenerateRequest{Prompt: "x"})

	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Contains(t, err.Error(), "model loading")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL}, nil)
	assert.NoError(t, svc.Ping(context.Background()))

	down := NewLLMService(LLMConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	assert.Error(t, down.Ping(context.Background()))
}
