// Package embedding combines an embedding model and an optional reranker
// into the client the retrieval engine talks to.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/recall/internal/binpack"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.EmbeddingClient = (*Client)(nil)

// DefaultBatchSize is the largest number of texts sent in one embedding request.
const DefaultBatchSize = 64

// Config tunes the client.
type Config struct {
	// QueryPrefix and PassagePrefix are prepended before encoding, for
	// asymmetric models such as nomic-embed-text ("search_query: ").
	QueryPrefix   string
	PassagePrefix string

	// Normalized reports whether the model emits unit vectors.
	Normalized bool

	// BatchSize caps texts per request (default: 64).
	BatchSize int

	// Concurrency caps in-flight batch requests (default: 1).
	Concurrency int
}

// Client implements driven.EmbeddingClient.
type Client struct {
	svc      driven.EmbeddingService
	reranker driven.Reranker
	cfg      Config
}

// NewClient wraps svc. reranker may be nil, in which case RerankScore
// fails with domain.ErrRerankUnavailable.
func NewClient(svc driven.EmbeddingService, reranker driven.Reranker, cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Client{svc: svc, reranker: reranker, cfg: cfg}
}

// EncodeQuery embeds search queries.
func (c *Client) EncodeQuery(ctx context.Context, texts []string) ([][]float32, error) {
	return c.encode(ctx, c.cfg.QueryPrefix, texts)
}

// EncodePassage embeds stored passages.
func (c *Client) EncodePassage(ctx context.Context, texts []string) ([][]float32, error) {
	return c.encode(ctx, c.cfg.PassagePrefix, texts)
}

func (c *Client) encode(ctx context.Context, prefix string, texts []string) ([][]float32, error) {
	if c.svc == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := texts
	if prefix != "" {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = prefix + t
		}
	}

	batches, err := binpack.ChunkEvenly(inputs, c.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	results := make([][][]float32, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			vecs, err := c.svc.EmbedBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("embed batch %d: %w", i, err)
			}
			if len(vecs) != len(batch) {
				return &domain.OutputShapeError{
					Collaborator: c.svc.ModelName(),
					Reason:       fmt.Sprintf("got %d embeddings for %d inputs", len(vecs), len(batch)),
				}
			}
			results[i] = vecs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, vecs := range results {
		out = append(out, vecs...)
	}
	return out, nil
}

// RerankScore scores every passage against query in one batched call.
func (c *Client) RerankScore(ctx context.Context, query string, passages []string) ([]float64, error) {
	if c.reranker == nil {
		return nil, domain.ErrRerankUnavailable
	}
	scores, err := c.reranker.Rerank(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(passages) {
		return nil, &domain.OutputShapeError{
			Collaborator: c.reranker.ModelName(),
			Reason:       fmt.Sprintf("got %d scores for %d passages", len(scores), len(passages)),
		}
	}
	return scores, nil
}

// IsNormalized reports whether vectors have unit length.
func (c *Client) IsNormalized() bool {
	return c.cfg.Normalized
}

// EncoderName identifies the embedding model.
func (c *Client) EncoderName() string {
	if c.svc == nil {
		return ""
	}
	return c.svc.ModelName()
}
