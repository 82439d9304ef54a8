package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Normalized declares that the model emits unit vectors,
	// which inner-product search requires.
	Normalized bool
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// ContextWindow overrides the model's known context size. Zero uses the default.
	ContextWindow int `validate:"gte=0"`
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RerankSettings holds the cross-encoder endpoint configuration.
type RerankSettings struct {
	// BaseURL is the rerank endpoint root, e.g. http://localhost:8080.
	BaseURL string

	// Model is the cross-encoder model name.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string
}

// IsConfigured returns true if a reranker is available.
func (r RerankSettings) IsConfigured() bool {
	return r.BaseURL != ""
}

// SegmenterSettings holds text splitting configuration.
type SegmenterSettings struct {
	Strategy     string `validate:"oneof=sentence window adaptive"`
	Backend      string `validate:"oneof=uniseg regex"`
	Unit         string `validate:"oneof=chars tokens"`
	MaxChunkSize int    `validate:"gt=0"`
	MinChunkSize int    `validate:"gte=0"`
	Overlap      int    `validate:"gte=0"`
}

// IndexSettings holds hierarchical index build configuration.
type IndexSettings struct {
	// SummaryTokens is the target length of each summary.
	SummaryTokens int `validate:"gt=0"`

	// MaxDepth bounds the number of reduction steps.
	MaxDepth int `validate:"gt=0"`

	// MinViableChunkSize is the smallest acceptable group budget.
	MinViableChunkSize int `validate:"gt=0"`

	// OverheadMargin is added to the measured prompt overhead.
	OverheadMargin int `validate:"gte=0"`

	// RollingContext enables the sequential rolling summary over leaves.
	RollingContext bool
}

// RetrievalSettings holds default retrieval options.
type RetrievalSettings struct {
	Strategy           Strategy `validate:"oneof=vector rerank genagents"`
	Metric             Metric   `validate:"oneof=cosine ip euclidean"`
	MaxItems           int      `validate:"gte=0"`
	MaxTokens          int      `validate:"gte=0"`
	Overshoot          int      `validate:"gte=1"`
	AlphaRecency       float64  `validate:"gte=0"`
	AlphaImportance    float64  `validate:"gte=0"`
	AlphaRelevance     float64  `validate:"gte=0"`
	HalfLifeSeconds    float64  `validate:"gt=0"`
	MaxImportanceScore float64  `validate:"gt=0"`
}

// InvocationSettings holds LLM call resilience configuration.
type InvocationSettings struct {
	// MaxAttempts bounds retries of transient failures, including the first try.
	MaxAttempts int `validate:"gte=1"`

	// InitialBackoffMs is the first retry delay.
	InitialBackoffMs int `validate:"gte=0"`

	// MaxBackoffMs caps a single retry delay.
	MaxBackoffMs int `validate:"gte=0"`

	// Concurrency caps in-flight calls.
	Concurrency int `validate:"gte=1"`

	// RequestsPerSecond limits the call rate. Zero disables limiting.
	RequestsPerSecond float64 `validate:"gte=0"`

	// BreakerFailures opens the circuit after this many consecutive failures. Zero disables it.
	BreakerFailures int `validate:"gte=0"`
}

// StorageBackend selects the storage adapter.
type StorageBackend string

// Storage backends.
const (
	StorageSQLite   StorageBackend = "sqlite"
	StoragePgvector StorageBackend = "pgvector"
)

// StorageSettings holds storage configuration.
type StorageSettings struct {
	Backend StorageBackend `validate:"oneof=sqlite pgvector"`

	// DSN is the Postgres connection string for pgvector.
	DSN string `validate:"required_if=Backend pgvector"`
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Rerank     RerankSettings
	Segmenter  SegmenterSettings
	Index      IndexSettings
	Retrieval  RetrievalSettings
	Invocation InvocationSettings
	Storage    StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users set them with `recall settings set`.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Segmenter: SegmenterSettings{
			Strategy:     "adaptive",
			Backend:      "uniseg",
			Unit:         "tokens",
			MaxChunkSize: 256,
			MinChunkSize: 32,
			Overlap:      0,
		},
		Index: IndexSettings{
			SummaryTokens:      256,
			MaxDepth:           8,
			MinViableChunkSize: 256,
			OverheadMargin:     32,
		},
		Retrieval: RetrievalSettings{
			Strategy:           StrategyVector,
			Metric:             MetricCosine,
			MaxItems:           10,
			Overshoot:          DefaultOvershoot,
			AlphaRecency:       1,
			AlphaImportance:    1,
			AlphaRelevance:     1,
			HalfLifeSeconds:    86400,
			MaxImportanceScore: MaxImportance,
		},
		Invocation: InvocationSettings{
			MaxAttempts:      4,
			InitialBackoffMs: 500,
			MaxBackoffMs:     20000,
			Concurrency:      4,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// ContextWindows returns the context size in tokens for known models.
func ContextWindows() map[string]int {
	return map[string]int{
		"llama3.2":                 8192,
		"gpt-4o-mini":              128000,
		"gpt-4o":                   128000,
		"claude-3-5-sonnet-latest": 200000,
		"claude-3-5-haiku-latest":  200000,
	}
}

// NormalizedEmbeddingModels lists models known to emit unit vectors.
func NormalizedEmbeddingModels() map[string]bool {
	return map[string]bool{
		"text-embedding-3-small": true,
		"text-embedding-3-large": true,
		"text-embedding-ada-002": true,
	}
}
