package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Hashes are unique, as in the SQL stores.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	byHash    map[string]string
	nodes     *NodeStore
}

// NewDocumentStore creates a new in-memory document store. When nodes is
// non-nil, deleting a document also deletes its tree.
func NewDocumentStore(nodes *NodeStore) *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		byHash:    make(map[string]string),
		nodes:     nodes,
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byHash[doc.Hash]; ok && owner != doc.ID {
		return domain.ErrAlreadyExists
	}
	if prev, ok := s.documents[doc.ID]; ok {
		delete(s.byHash, prev.Hash)
	}
	s.documents[doc.ID] = *doc
	s.byHash[doc.Hash] = doc.ID
	return nil
}

// ReplaceDocument swaps doc and its tree while holding the document lock.
func (s *DocumentStore) ReplaceDocument(_ context.Context, doc *domain.Document, nodes []domain.Node) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byHash[doc.Hash]; ok && owner != doc.ID {
		return domain.ErrAlreadyExists
	}
	if s.nodes != nil {
		s.nodes.replaceTree(doc.ID, nodes)
	}
	if prev, ok := s.documents[doc.ID]; ok {
		delete(s.byHash, prev.Hash)
	}
	s.documents[doc.ID] = *doc
	s.byHash[doc.Hash] = doc.ID
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByHash retrieves the document with a content hash.
func (s *DocumentStore) GetDocumentByHash(_ context.Context, hash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := s.documents[id]
	return &doc, nil
}

// DeleteDocument removes a document and its nodes.
func (s *DocumentStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	if doc, ok := s.documents[id]; ok {
		delete(s.byHash, doc.Hash)
		delete(s.documents, id)
	}
	s.mu.Unlock()

	if s.nodes != nil {
		return s.nodes.DeleteNodes(ctx, id)
	}
	return nil
}

// ListDocuments returns all documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		result = append(result, doc)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
