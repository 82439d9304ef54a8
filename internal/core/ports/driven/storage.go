package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// StorageQuery evaluates a scoring expression server-side and returns rows
// best-first, already filtered and limited.
type StorageQuery[E any] interface {
	Query(ctx context.Context, q domain.ScoringQuery) ([]domain.ScoredRow[E], error)
}

// AccessToucher records that entities were retrieved.
type AccessToucher interface {
	TouchAccessed(ctx context.Context, ids []string, at time.Time) error
}

// NodeStore persists index trees.
type NodeStore interface {
	// SaveNodes stores a built tree. Nodes are written in one transaction.
	SaveNodes(ctx context.Context, nodes []domain.Node) error

	// GetNodes returns a document's nodes, by depth then index.
	GetNodes(ctx context.Context, documentID string) ([]domain.Node, error)

	// DeleteNodes removes a document's tree.
	DeleteNodes(ctx context.Context, documentID string) error
}

// MemoryStore persists agent memories.
type MemoryStore interface {
	SaveMemory(ctx context.Context, m *domain.Memory) error
	GetMemory(ctx context.Context, id string) (*domain.Memory, error)
	ListMemories(ctx context.Context) ([]domain.Memory, error)
}

// CallLogStore persists LLM call audit records.
type CallLogStore interface {
	Record(ctx context.Context, rec *domain.CallRecord) error

	// List returns the most recent records first.
	List(ctx context.Context, limit int) ([]domain.CallRecord, error)
}
