// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/recall/internal/adapters/driven/httpx"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL          = "http://localhost:11434"
	DefaultLLMModel         = "llama3.2"
	DefaultLLMTimeout       = 120 * time.Second
	DefaultLLMContextWindow = 8192
)

const collaborator = "ollama"

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// ContextWindow is sent as num_ctx and used for preflight checks.
	ContextWindow int
}

// LLMService provides LLM operations using Ollama.
type LLMService struct {
	client        *http.Client
	baseURL       string
	model         string
	contextWindow int
	tok           tokenize.Tokenizer
}

// options holds generation parameters.
type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	NumCtx      int      `json:"num_ctx,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig, tok tokenize.Tokenizer) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = DefaultLLMContextWindow
	}
	if tok == nil {
		tok = tokenize.New()
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:       cfg.BaseURL,
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		tok:           tok,
	}
}

// Generate produces one chat completion.
func (s *LLMService) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	turns := req.Turns()
	messages := make([]chatMessage, 0, len(turns)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range turns {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body := chatRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   false,
		Options: &options{
			NumPredict:  req.MaxTokens,
			NumCtx:      s.contextWindow,
			Temperature: req.Temperature,
			Stop:        req.StopWords,
		},
	}

	var resp chatResponse
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Collaborator: collaborator,
		Op:           "generate",
		URL:          s.baseURL + "/api/chat",
		Body:         body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Done {
		return nil, &domain.OutputShapeError{Collaborator: collaborator, Reason: "incomplete response"}
	}

	return &driven.GenerateResponse{
		Content: resp.Message.Content,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
		FinishReason: resp.DoneReason,
		Model:        resp.Model,
	}, nil
}

// NumTokens estimates tokens locally.
func (s *LLMService) NumTokens(text string) int {
	return s.tok.Count(text)
}

// ContextWindow returns the configured context size in tokens.
func (s *LLMService) ContextWindow() int {
	return s.contextWindow
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
func (s *LLMService) Ping(ctx context.Context) error {
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Collaborator: collaborator,
		Op:           "ping",
		Method:       http.MethodGet,
		URL:          s.baseURL + "/api/tags",
	}, nil)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
