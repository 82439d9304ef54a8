package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DocumentService ingests documents and manages their index trees.
type DocumentService interface {
	// Ingest builds, embeds and stores the tree for doc. A document whose
	// content hash is already stored is skipped.
	Ingest(ctx context.Context, doc *domain.Document) (*IngestResult, error)

	// Estimate reports what indexing doc would cost, without calling the model.
	Estimate(ctx context.Context, doc *domain.Document) (*domain.TokenEstimate, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Nodes returns a document's tree, by depth then index.
	Nodes(ctx context.Context, documentID string) ([]domain.Node, error)

	// Delete removes a document and its tree.
	Delete(ctx context.Context, documentID string) error
}

// IngestResult summarises one ingestion.
type IngestResult struct {
	Document domain.Document

	// Skipped is true when identical content was already indexed.
	Skipped bool

	// Replaced is true when an older version of the document was removed.
	Replaced bool

	RootID    string
	NodeCount int

	// LevelCounts is the node count per depth, leaves first.
	LevelCounts []int

	Usage domain.TokenUsage
}
