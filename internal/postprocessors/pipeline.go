// Package postprocessors assembles leaf generation from named processors.
package postprocessors

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline feeds each processor the nodes the previous one produced.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline running processors in argument order.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs doc through every stage. The first stage receives no nodes
// and creates the leaves. Cancellation is checked between stages.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Node, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}

	var nodes []domain.Node
	for _, stage := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := stage.Process(ctx, doc, nodes)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", stage.Name(), err)
		}
		logger.Debugw("post-processor finished",
			"processor", stage.Name(), "document", doc.ID,
			"in", len(nodes), "out", len(out), "took", time.Since(start))
		nodes = out
	}
	return nodes, nil
}

// Add appends a stage.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names lists the stages in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, stage := range p.processors {
		names[i] = stage.Name()
	}
	return names
}
