// Package openai provides an LLM service adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/recall/internal/adapters/driven/httpx"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultLLMModel         = "gpt-4o-mini"
	DefaultLLMTimeout       = 120 * time.Second
	DefaultLLMContextWindow = 128000
)

const collaborator = "openai"

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// ContextWindow overrides the known context size for Model.
	ContextWindow int
}

// LLMService provides LLM operations using the OpenAI API.
type LLMService struct {
	client        *openai.Client
	model         string
	contextWindow int
	tok           tokenize.Tokenizer
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig, tok tokenize.Tokenizer) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewConfigurationError("llm.api_key", "openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = domain.ContextWindows()[cfg.Model]
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = DefaultLLMContextWindow
	}
	if tok == nil {
		tok = tokenize.New()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &LLMService{
		client:        openai.NewClientWithConfig(config),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		tok:           tok,
	}, nil
}

// Generate produces one chat completion.
func (s *LLMService) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Turns() {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stop:        req.StopWords,
	})
	if err != nil {
		return nil, wrapError("generate", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.OutputShapeError{Collaborator: collaborator, Reason: "no choices in response"}
	}

	choice := resp.Choices[0]
	return &driven.GenerateResponse{
		Content: choice.Message.Content,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}, nil
}

// wrapError maps go-openai errors onto domain.CollaboratorError.
func wrapError(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return httpx.Classify(collaborator, op, status, err)
}

// NumTokens estimates tokens locally.
func (s *LLMService) NumTokens(text string) int {
	return s.tok.Count(text)
}

// ContextWindow returns the model context size in tokens.
func (s *LLMService) ContextWindow() int {
	return s.contextWindow
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by listing models.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", wrapError("ping", err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
