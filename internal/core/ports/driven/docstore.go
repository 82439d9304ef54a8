package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DocumentStore keeps ingested documents. Content hashes are unique: saving a
// second ID with an existing hash fails with domain.ErrAlreadyExists. Lookups
// that miss return domain.ErrNotFound.
type DocumentStore interface {
	// SaveDocument upserts by ID.
	SaveDocument(ctx context.Context, doc *domain.Document) error
	// ReplaceDocument stores doc together with its index tree as one unit,
	// discarding any earlier document and tree under doc.ID. On error the
	// earlier document and tree are left untouched.
	ReplaceDocument(ctx context.Context, doc *domain.Document, nodes []domain.Node) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error)
	// DeleteDocument also drops the document's index tree. Unknown IDs are a no-op.
	DeleteDocument(ctx context.Context, id string) error
	// ListDocuments orders newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
