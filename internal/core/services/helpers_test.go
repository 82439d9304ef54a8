package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/services/index"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// stubEmbedder embeds text by looking it up, falling back to a fixed vector.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	rerank   map[string]float64
	err      error
	drop     bool
	passages int
}

func (e *stubEmbedder) encode(texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float32{1, 0}
		}
		out = append(out, v)
	}
	if e.drop && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *stubEmbedder) EncodeQuery(_ context.Context, texts []string) ([][]float32, error) {
	return e.encode(texts)
}

func (e *stubEmbedder) EncodePassage(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.passages += len(texts)
	e.mu.Unlock()
	return e.encode(texts)
}

func (e *stubEmbedder) RerankScore(_ context.Context, _ string, passages []string) ([]float64, error) {
	out := make([]float64, len(passages))
	for i, p := range passages {
		out[i] = e.rerank[p]
	}
	return out, nil
}

func (e *stubEmbedder) IsNormalized() bool  { return true }
func (e *stubEmbedder) EncoderName() string { return "stub-encoder" }

// stubBuilder makes one leaf per paragraph under a single root.
type stubBuilder struct {
	builds int
	err    error
}

func (b *stubBuilder) Build(_ context.Context, doc *domain.Document) (*index.Result, error) {
	b.builds++
	if b.err != nil {
		return nil, b.err
	}
	rootID := uuid.New().String()
	root := domain.Node{ID: rootID, DocumentID: doc.ID, Depth: 1, Content: "summary of " + doc.Title}

	var leaves []domain.Node
	for i, para := range strings.Split(doc.Content, "\n\n") {
		id := uuid.New().String()
		parent := rootID
		leaves = append(leaves, domain.Node{
			ID: id, DocumentID: doc.ID, Index: i, Content: para, IsLeaf: true, ParentID: &parent,
		})
		root.ChildIDs = append(root.ChildIDs, id)
	}
	return &index.Result{
		Nodes:       append(leaves, root),
		RootID:      rootID,
		LevelCounts: []int{len(leaves), 1},
		Usage:       domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (b *stubBuilder) Estimate(_ context.Context, doc *domain.Document) (*domain.TokenEstimate, error) {
	return &domain.TokenEstimate{DocumentTokens: len(strings.Fields(doc.Content)), TotalCalls: 1}, nil
}
