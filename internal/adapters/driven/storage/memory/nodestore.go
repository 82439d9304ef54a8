package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/scoring"
)

var (
	_ driven.NodeStore                 = (*NodeStore)(nil)
	_ driven.StorageQuery[domain.Node] = (*NodeStore)(nil)
)

// NodeStore is an in-memory implementation of driven.NodeStore that scores
// nodes by brute force.
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[string]domain.Node
}

// NewNodeStore creates a new in-memory node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[string]domain.Node)}
}

// SaveNodes stores or replaces nodes by ID.
func (s *NodeStore) SaveNodes(_ context.Context, nodes []domain.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	return nil
}

// GetNodes returns a document's nodes, by depth then index.
func (s *NodeStore) GetNodes(_ context.Context, documentID string) ([]domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Node
	for _, n := range s.nodes {
		if n.DocumentID == documentID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// DeleteNodes removes a document's tree.
func (s *NodeStore) DeleteNodes(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.nodes {
		if n.DocumentID == documentID {
			delete(s.nodes, id)
		}
	}
	return nil
}

// replaceTree drops documentID's nodes and stores nodes in one critical section.
func (s *NodeStore) replaceTree(documentID string, nodes []domain.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.nodes {
		if n.DocumentID == documentID {
			delete(s.nodes, id)
		}
	}
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
}

// Query ranks nodes by similarity. Nodes have no composite score.
func (s *NodeStore) Query(_ context.Context, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Node], error) {
	if q.Kind == domain.ScoringComposite {
		return nil, fmt.Errorf("%w: nodes do not support composite scoring", domain.ErrInvalidInput)
	}
	if !q.Metric.IsValid() {
		return nil, fmt.Errorf("%w: metric %q", domain.ErrUnsupportedType, q.Metric)
	}
	for _, f := range q.Filters {
		if _, ok := nodeField(domain.Node{}, f.Field); !ok {
			return nil, fmt.Errorf("%w: unknown node field %q", domain.ErrInvalidInput, f.Field)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ScoredRow[domain.Node]
	for _, n := range s.nodes {
		if len(n.Embedding) == 0 {
			continue
		}
		ok, err := matchFilters(q.Filters, func(field string) (any, bool) { return nodeField(n, field) })
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, domain.ScoredRow[domain.Node]{
			Entity:     n,
			Similarity: scoring.Similarity(q.Metric, q.Embedding, n.Embedding),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Entity.Depth != b.Entity.Depth {
			return a.Entity.Depth < b.Entity.Depth
		}
		return a.Entity.Index < b.Entity.Index
	})
	return truncateRows(out, q.Limit), nil
}

func nodeField(n domain.Node, field string) (any, bool) {
	switch field {
	case "id":
		return n.ID, true
	case "document_id":
		return n.DocumentID, true
	case "index":
		return n.Index, true
	case "is_leaf":
		return n.IsLeaf, true
	case "depth":
		return n.Depth, true
	case "parent_id":
		if n.ParentID == nil {
			return "", true
		}
		return *n.ParentID, true
	default:
		return nil, false
	}
}

func truncateRows[E any](rows []domain.ScoredRow[E], limit int) []domain.ScoredRow[E] {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
