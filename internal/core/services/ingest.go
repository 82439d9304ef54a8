package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/core/services/index"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// TreeBuilder builds and costs summary trees.
type TreeBuilder interface {
	Build(ctx context.Context, doc *domain.Document) (*index.Result, error)
	Estimate(ctx context.Context, doc *domain.Document) (*domain.TokenEstimate, error)
}

// DocumentService ingests documents into persisted, embedded trees.
type DocumentService struct {
	builder   TreeBuilder
	embedder  driven.EmbeddingClient
	docStore  driven.DocumentStore
	nodeStore driven.NodeStore
}

// NewDocumentService creates a new document service. builder and embedder
// may be nil when no providers are configured; listing and deleting still work.
func NewDocumentService(
	builder TreeBuilder,
	embedder driven.EmbeddingClient,
	docStore driven.DocumentStore,
	nodeStore driven.NodeStore,
) *DocumentService {
	return &DocumentService{
		builder:   builder,
		embedder:  embedder,
		docStore:  docStore,
		nodeStore: nodeStore,
	}
}

// Ingest builds, embeds and stores doc. Identical content is skipped. A
// stored document with the same ID is swapped for the new one in a single
// store write, after the new tree has been built and embedded.
func (s *DocumentService) Ingest(ctx context.Context, doc *domain.Document) (*driving.IngestResult, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	if s.builder == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if doc.Hash == "" {
		doc.Hash = domain.HashContent(doc.Type, doc.Content)
	}

	existing, err := s.docStore.GetDocumentByHash(ctx, doc.Hash)
	switch {
	case err == nil:
		logger.Debug("skipping %s: content already indexed as %s", doc.ID, existing.ID)
		return s.skipped(ctx, existing)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("lookup document hash: %w", err)
	}

	logger.Section("Indexing " + doc.ID)
	res, err := s.builder.Build(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := s.embedNodes(ctx, res.Nodes); err != nil {
		return nil, err
	}

	replaced := false
	if _, err := s.docStore.GetDocument(ctx, doc.ID); err == nil {
		replaced = true
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get document: %w", err)
	}

	if err := s.docStore.ReplaceDocument(ctx, doc, res.Nodes); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	logger.Infow("document indexed",
		"document", doc.ID, "nodes", len(res.Nodes), "depth", res.Depth(), "tokens", res.Usage.TotalTokens)

	return &driving.IngestResult{
		Document:    *doc,
		Replaced:    replaced,
		RootID:      res.RootID,
		NodeCount:   len(res.Nodes),
		LevelCounts: res.LevelCounts,
		Usage:       res.Usage,
	}, nil
}

func (s *DocumentService) skipped(ctx context.Context, doc *domain.Document) (*driving.IngestResult, error) {
	nodes, err := s.nodeStore.GetNodes(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	result := &driving.IngestResult{Document: *doc, Skipped: true, NodeCount: len(nodes)}
	for _, n := range nodes {
		for len(result.LevelCounts) <= n.Depth {
			result.LevelCounts = append(result.LevelCounts, 0)
		}
		result.LevelCounts[n.Depth]++
		if n.ParentID == nil {
			result.RootID = n.ID
		}
	}
	return result, nil
}

// embedNodes sets the passage vector of every node in one batch.
func (s *DocumentService) embedNodes(ctx context.Context, nodes []domain.Node) error {
	texts := make([]string, len(nodes))
	for i := range nodes {
		texts[i] = nodes[i].Content
	}
	vectors, err := s.embedder.EncodePassage(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed nodes: %w", err)
	}
	if len(vectors) != len(nodes) {
		return &domain.OutputShapeError{
			Collaborator: s.embedder.EncoderName(),
			Reason:       fmt.Sprintf("got %d vectors for %d passages", len(vectors), len(nodes)),
		}
	}
	for i := range nodes {
		nodes[i].Embedding = vectors[i]
	}
	return nil
}

// Estimate reports the cost of indexing doc.
func (s *DocumentService) Estimate(ctx context.Context, doc *domain.Document) (*domain.TokenEstimate, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	if s.builder == nil {
		return nil, domain.ErrLLMUnavailable
	}
	return s.builder.Estimate(ctx, doc)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Nodes returns a document's tree.
func (s *DocumentService) Nodes(ctx context.Context, documentID string) ([]domain.Node, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.nodeStore.GetNodes(ctx, documentID)
}

// Delete removes a document and its tree.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if err := s.nodeStore.DeleteNodes(ctx, documentID); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	return s.docStore.DeleteDocument(ctx, documentID)
}
