package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// MemoryService records agent memories.
type MemoryService interface {
	// Add embeds content and stores it as an observation.
	Add(ctx context.Context, content string, importance int, metadata map[string]any) (*domain.Memory, error)

	// List returns every memory, newest first.
	List(ctx context.Context) ([]domain.Memory, error)
}
