package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ensure MemoryService implements the interface.
var _ driving.MemoryService = (*MemoryService)(nil)

// MemoryService records observations for later recall.
type MemoryService struct {
	embedder driven.EmbeddingClient
	store    driven.MemoryStore
	now      func() time.Time
}

// NewMemoryService creates a new memory service.
func NewMemoryService(embedder driven.EmbeddingClient, store driven.MemoryStore) *MemoryService {
	return &MemoryService{embedder: embedder, store: store, now: time.Now}
}

// Add embeds content and stores it as an observation.
func (s *MemoryService) Add(ctx context.Context, content string, importance int, metadata map[string]any) (*domain.Memory, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: memory content is empty", domain.ErrInvalidInput)
	}
	if importance < 0 || importance > domain.MaxImportance {
		return nil, domain.NewConfigurationError("importance", "must be between 0 and %d (got %d)", domain.MaxImportance, importance)
	}

	vectors, err := s.embedder.EncodePassage(ctx, []string{content})
	if err != nil {
		return nil, fmt.Errorf("embed memory: %w", err)
	}
	if len(vectors) != 1 {
		return nil, &domain.OutputShapeError{
			Collaborator: s.embedder.EncoderName(),
			Reason:       fmt.Sprintf("got %d vectors for 1 passage", len(vectors)),
		}
	}

	if metadata == nil {
		metadata = make(map[string]any)
	}
	now := s.now().UTC()
	m := &domain.Memory{
		ID:             uuid.New().String(),
		Content:        content,
		Embedding:      vectors[0],
		Timestamp:      now,
		LastAccessedAt: now,
		Importance:     importance,
		Metadata:       metadata,
	}
	if err := s.store.SaveMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	return m, nil
}

// List returns every memory, newest first.
func (s *MemoryService) List(ctx context.Context) ([]domain.Memory, error) {
	return s.store.ListMemories(ctx)
}
