package index

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/binpack"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Estimate simulates Build without calling the model. Every hypothetical
// summary is assumed to be exactly SummaryTokens long.
func (b *Builder) Estimate(ctx context.Context, doc *domain.Document) (*domain.TokenEstimate, error) {
	bud, err := b.preflight()
	if err != nil {
		return nil, err
	}
	leaves, err := b.leaves.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("generate leaves: %w", err)
	}
	if len(leaves) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	est := &domain.TokenEstimate{
		DocumentTokens: b.llm.NumTokens(doc.Content),
		MaxGroupSize:   bud.maxGroupSize,
		Levels:         []domain.LevelEstimate{{Depth: 0, NodeCount: len(leaves)}},
	}

	sizes := make([]int, len(leaves))
	for i, leaf := range leaves {
		sizes[i] = b.llm.NumTokens(leaf.Content)
	}

	if b.opts.RollingContext && len(leaves) > 1 {
		tmpl, err := b.prompts.Load(driven.PromptSummariseWithContext)
		if err != nil {
			return nil, fmt.Errorf("load rolling context prompt: %w", err)
		}
		overhead := b.llm.NumTokens(fmt.Sprintf(tmpl, b.opts.SummaryTokens, "", "")) + b.opts.OverheadMargin
		for i := 0; i < len(leaves)-1; i++ {
			running := 0
			if i > 0 {
				running = b.opts.SummaryTokens
			}
			est.ContextCalls++
			est.ContextTokens += sizes[i] + running + overhead + b.opts.SummaryTokens
		}
	}

	identity := func(n int) int { return n }
	for depth := 1; depth == 1 || len(sizes) > 1; depth++ {
		if depth > b.opts.MaxDepth {
			return nil, &domain.ConvergenceError{
				Depth: depth - 1, Before: len(sizes), After: len(sizes),
				Reason: fmt.Sprintf("max depth %d reached with more than one node", b.opts.MaxDepth),
			}
		}
		groups, err := binpack.AggregateByLength(sizes, bud.maxGroupSize, identity)
		if err != nil {
			return nil, err
		}
		if len(sizes) > 1 && len(groups) >= len(sizes) {
			return nil, &domain.ConvergenceError{
				Depth: depth, Before: len(sizes), After: len(groups),
				Reason: "no group holds more than one node",
			}
		}

		level := domain.LevelEstimate{Depth: depth, NodeCount: len(groups), Calls: len(groups)}
		next := make([]int, len(groups))
		for i, group := range groups {
			for _, n := range group {
				level.Tokens += n
			}
			level.Tokens += bud.overhead + b.opts.SummaryTokens
			next[i] = b.opts.SummaryTokens
		}
		est.Levels = append(est.Levels, level)
		est.TotalCalls += level.Calls
		est.EstimatedTokens += level.Tokens
		sizes = next
	}

	est.TotalCalls += est.ContextCalls
	est.EstimatedTokens += est.ContextTokens
	if est.DocumentTokens > 0 {
		est.CostMultiplier = float64(est.EstimatedTokens) / float64(est.DocumentTokens)
	}
	return est, nil
}
