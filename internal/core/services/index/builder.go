// Package index builds a hierarchical summary tree over a document's leaves.
//
// Each level is grouped by token length under a budget derived from the
// model's context window, and every group is summarised by one LLM call.
// Levels run in sequence; calls within a level run concurrently through
// the invocation client.
package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/binpack"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// Operation names reported to the invocation layer.
const (
	OpSummarise      = "summarise"
	OpRollingContext = "rolling_context"
)

// groupSeparator joins sibling contents into one summarisation input.
const groupSeparator = "\n\n"

// Options controls tree construction.
type Options struct {
	// SummaryTokens is the target length of each summary.
	SummaryTokens int

	// MaxDepth bounds the number of reduction steps.
	MaxDepth int

	// MinViableChunkSize is the smallest acceptable per-call input budget.
	MinViableChunkSize int

	// OverheadMargin is added to the measured prompt overhead.
	OverheadMargin int

	// RollingContext fills each leaf's Context with a running summary.
	RollingContext bool
}

// OptionsFromSettings maps configured index settings to Options.
func OptionsFromSettings(s domain.IndexSettings) Options {
	return Options{
		SummaryTokens:      s.SummaryTokens,
		MaxDepth:           s.MaxDepth,
		MinViableChunkSize: s.MinViableChunkSize,
		OverheadMargin:     s.OverheadMargin,
		RollingContext:     s.RollingContext,
	}
}

// Result is a finished tree.
type Result struct {
	// Nodes holds leaves first, then each level in order.
	Nodes []domain.Node

	RootID string

	// LevelCounts is the node count per depth, leaves first.
	LevelCounts []int

	// Usage sums the token usage of every LLM call.
	Usage domain.TokenUsage
}

// Depth returns the number of reduction steps.
func (r *Result) Depth() int {
	return len(r.LevelCounts) - 1
}

// Builder turns documents into summary trees.
type Builder struct {
	llm     driven.LLMClient
	leaves  driven.PostProcessorPipeline
	prompts driven.PromptStore
	opts    Options
}

// NewBuilder creates a builder. leaves produces the depth-0 nodes.
func NewBuilder(llm driven.LLMClient, leaves driven.PostProcessorPipeline, prompts driven.PromptStore, opts Options) *Builder {
	return &Builder{llm: llm, leaves: leaves, prompts: prompts, opts: opts}
}

// budget is the derived per-call sizing.
type budget struct {
	overhead     int
	maxGroupSize int
	template     string
}

// preflight derives the group budget and rejects it before any network call.
func (b *Builder) preflight() (budget, error) {
	if b.opts.SummaryTokens <= 0 {
		return budget{}, domain.NewConfigurationError("index.summary_tokens", "must be positive, got %d", b.opts.SummaryTokens)
	}
	if b.opts.MaxDepth <= 0 {
		return budget{}, domain.NewConfigurationError("index.max_depth", "must be positive, got %d", b.opts.MaxDepth)
	}
	tmpl, err := b.prompts.Load(driven.PromptSummarise)
	if err != nil {
		return budget{}, fmt.Errorf("load summarise prompt: %w", err)
	}

	overhead := b.llm.NumTokens(fmt.Sprintf(tmpl, b.opts.SummaryTokens, "")) + b.opts.OverheadMargin
	maxGroup := b.llm.ContextWindow() - overhead - b.opts.SummaryTokens
	if maxGroup <= b.opts.MinViableChunkSize {
		return budget{}, domain.NewConfigurationError("index.max_group_size",
			"%d tokens left per call (context window %d, prompt overhead %d, summary %d) is at or below the minimum of %d",
			maxGroup, b.llm.ContextWindow(), overhead, b.opts.SummaryTokens, b.opts.MinViableChunkSize)
	}
	return budget{overhead: overhead, maxGroupSize: maxGroup, template: tmpl}, nil
}

// Build segments doc and reduces its leaves to a single root. Any failure
// aborts the build; no partial tree is returned.
func (b *Builder) Build(ctx context.Context, doc *domain.Document) (*Result, error) {
	logger.Section("Index Build")

	bud, err := b.preflight()
	if err != nil {
		return nil, err
	}
	logger.Debug("Model %s: max group size %d tokens, prompt overhead %d", b.llm.ModelName(), bud.maxGroupSize, bud.overhead)

	leaves, err := b.leaves.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("generate leaves: %w", err)
	}
	if len(leaves) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	logger.Info("Generated %d leaves for %s", len(leaves), doc.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := &Result{}
	a := newArena()
	level := make([]string, len(leaves))
	for i, leaf := range leaves {
		level[i] = a.add(leaf)
	}

	if b.opts.RollingContext {
		usage, err := b.rollingContext(ctx, a, level)
		if err != nil {
			return nil, err
		}
		res.Usage = res.Usage.Add(usage)
	}
	res.LevelCounts = append(res.LevelCounts, len(level))

	for depth := 1; depth == 1 || len(level) > 1; depth++ {
		if depth > b.opts.MaxDepth {
			return nil, &domain.ConvergenceError{
				Depth: depth - 1, Before: len(level), After: len(level),
				Reason: fmt.Sprintf("max depth %d reached with more than one node", b.opts.MaxDepth),
			}
		}

		next, usage, err := b.reduce(ctx, a, doc.ID, level, depth, bud)
		if err != nil {
			return nil, err
		}
		res.Usage = res.Usage.Add(usage)
		res.LevelCounts = append(res.LevelCounts, len(next))
		logger.Debug("Level %d: %d -> %d nodes", depth, len(level), len(next))
		level = next
	}

	res.RootID = level[0]
	res.Nodes = a.release()
	logger.Info("Built tree of depth %d with %d nodes", res.Depth(), len(res.Nodes))
	return res, nil
}

// reduce summarises one level into the next. Groups are issued concurrently
// and the level fails as a unit.
func (b *Builder) reduce(ctx context.Context, a *arena, docID string, level []string, depth int, bud budget) ([]string, domain.TokenUsage, error) {
	var usage domain.TokenUsage

	groups, err := binpack.AggregateByLength(level, bud.maxGroupSize, func(id string) int {
		return b.llm.NumTokens(a.get(id).Content)
	})
	if err != nil {
		return nil, usage, err
	}
	if len(level) > 1 && len(groups) >= len(level) {
		return nil, usage, &domain.ConvergenceError{
			Depth: depth, Before: len(level), After: len(groups),
			Reason: "no group holds more than one node",
		}
	}

	pending := make([]*driven.Pending, len(groups))
	for i, group := range groups {
		req := driven.GenerateRequest{
			Prompt:    fmt.Sprintf(bud.template, b.opts.SummaryTokens, b.joinContent(a, group)),
			MaxTokens: b.opts.SummaryTokens,
		}
		pending[i] = b.llm.GenerateAsync(ctx, OpSummarise, req)
	}

	now := time.Now().UTC()
	next := make([]string, len(groups))
	for i, p := range pending {
		resp, err := p.Wait(ctx)
		if err != nil {
			return nil, usage, fmt.Errorf("summarise level %d group %d: %w", depth, i, err)
		}
		summary := strings.TrimSpace(resp.Content)
		if summary == "" {
			return nil, usage, &domain.OutputShapeError{Collaborator: b.llm.ModelName(), Reason: "empty summary"}
		}
		usage = usage.Add(resp.Usage)

		parentID := a.add(domain.Node{
			ID:         uuid.New().String(),
			DocumentID: docID,
			Index:      i,
			Content:    summary,
			Depth:      depth,
			CreatedAt:  now,
		})
		a.link(parentID, groups[i])
		next[i] = parentID
	}
	return next, usage, nil
}

// rollingContext fills Context on each leaf. Each step depends on the one
// before it, so calls are made one at a time.
func (b *Builder) rollingContext(ctx context.Context, a *arena, leaves []string) (domain.TokenUsage, error) {
	var usage domain.TokenUsage
	tmpl, err := b.prompts.Load(driven.PromptSummariseWithContext)
	if err != nil {
		return usage, fmt.Errorf("load rolling context prompt: %w", err)
	}

	running := ""
	for i, id := range leaves {
		leaf := a.get(id)
		leaf.Context = running
		if i == len(leaves)-1 {
			break
		}
		resp, err := b.llm.Generate(ctx, OpRollingContext, driven.GenerateRequest{
			Prompt:    fmt.Sprintf(tmpl, b.opts.SummaryTokens, running, leaf.Content),
			MaxTokens: b.opts.SummaryTokens,
		})
		if err != nil {
			return usage, fmt.Errorf("rolling context at leaf %d: %w", i, err)
		}
		usage = usage.Add(resp.Usage)
		running = strings.TrimSpace(resp.Content)
	}
	return usage, nil
}

func (b *Builder) joinContent(a *arena, ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = a.get(id).Content
	}
	return strings.Join(parts, groupSeparator)
}
