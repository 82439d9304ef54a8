// Package anthropic provides an LLM service adapter using Anthropic API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/custodia-labs/recall/internal/adapters/driven/httpx"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultModel         = "claude-3-5-sonnet-latest"
	DefaultTimeout       = 120 * time.Second
	DefaultMaxTokens     = 1024
	DefaultContextWindow = 200000
)

const collaborator = "anthropic"

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// ContextWindow overrides the known context size for Model.
	ContextWindow int
}

// LLMService provides LLM operations using Anthropic API.
type LLMService struct {
	client        anthropic.Client
	model         string
	contextWindow int
	tok           tokenize.Tokenizer
}

// NewLLMService creates a new Anthropic LLM service.
// Retries are disabled in the SDK; the invocation layer owns them.
func NewLLMService(cfg Config, tok tokenize.Tokenizer) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewConfigurationError("llm.api_key", "anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = domain.ContextWindows()[cfg.Model]
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if tok == nil {
		tok = tokenize.New()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMService{
		client:        anthropic.NewClient(opts...),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		tok:           tok,
	}, nil
}

// Generate produces one message completion.
func (s *LLMService) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:         anthropic.Model(s.model),
		MaxTokens:     int64(maxTokens),
		Messages:      buildMessages(req),
		StopSequences: req.StopWords,
	}
	if system := systemPrompt(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapError("generate", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if len(resp.Content) == 0 {
		return nil, &domain.OutputShapeError{Collaborator: collaborator, Reason: "no content in response"}
	}

	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &driven.GenerateResponse{
		Content: text.String(),
		Usage: domain.TokenUsage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
		FinishReason: string(resp.StopReason),
		Model:        string(resp.Model),
	}, nil
}

// buildMessages converts turns to Anthropic messages. System turns are
// carried in the system prompt instead.
func buildMessages(req driven.GenerateRequest) []anthropic.MessageParam {
	turns := req.Turns()
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		switch m.Role {
		case "system":
			continue
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return messages
}

func systemPrompt(req driven.GenerateRequest) string {
	parts := make([]string, 0, 1)
	if req.System != "" {
		parts = append(parts, req.System)
	}
	for _, m := range req.Messages {
		if m.Role == "system" && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func wrapError(op string, err error) error {
	status := 0
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
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
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", wrapError("ping", err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
