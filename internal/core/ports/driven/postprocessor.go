package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// PostProcessor is one stage of leaf production. The first stage (the
// chunker) receives nil nodes and segments doc; later stages refine what the
// previous stage returned.
type PostProcessor interface {
	// Name is the key used in settings and logs.
	Name() string
	Process(ctx context.Context, doc *domain.Document, nodes []domain.Node) ([]domain.Node, error)
}

// PostProcessorPipeline runs its stages in order and returns the final leaves.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Node, error)
}
