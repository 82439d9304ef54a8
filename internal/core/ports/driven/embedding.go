package driven

import "context"

// EmbeddingService is one embedding model endpoint (OpenAI, Ollama).
// EmbedBatch returns vectors in input order.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	// Ping makes the cheapest request the provider offers.
	Ping(ctx context.Context) error
	Close() error
}

// Reranker scores (query, passage) pairs with a cross-encoder. Scores come
// back in passage order; larger is more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
	ModelName() string
}

// EmbeddingClient is everything retrieval needs from the embedding side.
// Queries and passages are encoded separately for asymmetric models.
type EmbeddingClient interface {
	EncodeQuery(ctx context.Context, texts []string) ([][]float32, error)
	EncodePassage(ctx context.Context, texts []string) ([][]float32, error)
	// RerankScore is one batched cross-encoder call over all passages.
	RerankScore(ctx context.Context, query string, passages []string) ([]float64, error)
	// IsNormalized reports unit-length vectors, which inner product requires.
	IsNormalized() bool
	EncoderName() string
}
