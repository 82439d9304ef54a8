package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// fakeLLM counts whitespace-separated words as tokens and answers every
// call with a fixed-length summary.
type fakeLLM struct {
	window      int
	summaryLen  int
	failOnCall  int64
	calls       atomic.Int64
	mu          sync.Mutex
	prompts     []string
	rollingSeen []string
}

func (f *fakeLLM) Generate(_ context.Context, op string, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	if op == OpRollingContext {
		f.rollingSeen = append(f.rollingSeen, req.Prompt)
	}
	f.mu.Unlock()

	if f.failOnCall > 0 && n == f.failOnCall {
		return nil, &domain.CollaboratorError{Collaborator: "fake", Op: op, StatusCode: 400}
	}
	words := make([]string, f.summaryLen)
	for i := range words {
		words[i] = fmt.Sprintf("s%d", n)
	}
	return &driven.GenerateResponse{
		Content: strings.Join(words, " "),
		Usage:   domain.TokenUsage{PromptTokens: 10, CompletionTokens: f.summaryLen, TotalTokens: 10 + f.summaryLen},
	}, nil
}

func (f *fakeLLM) GenerateAsync(ctx context.Context, op string, req driven.GenerateRequest) *driven.Pending {
	p := driven.NewPending()
	go func() { p.Resolve(f.Generate(ctx, op, req)) }()
	return p
}

func (f *fakeLLM) NumTokens(text string) int { return len(strings.Fields(text)) }
func (f *fakeLLM) ContextWindow() int        { return f.window }
func (f *fakeLLM) ModelName() string         { return "fake" }

type fakePrompts struct{}

func (fakePrompts) Load(name string) (string, error) {
	switch name {
	case driven.PromptSummarise:
		return "%[1]d %[2]s", nil
	case driven.PromptSummariseWithContext:
		return "%[1]d %[2]s | %[3]s", nil
	default:
		return "", errors.New("unknown prompt")
	}
}

func (fakePrompts) Reload() {}

type fakeLeaves struct {
	nodes []domain.Node
	err   error
}

func (f fakeLeaves) Process(_ context.Context, doc *domain.Document) ([]domain.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Node, len(f.nodes))
	for i, n := range f.nodes {
		n.DocumentID = doc.ID
		out[i] = n
	}
	return out, nil
}

// makeLeaves returns n leaves of words tokens each.
func makeLeaves(n, words int) fakeLeaves {
	nodes := make([]domain.Node, n)
	for i := range nodes {
		parts := make([]string, words)
		for j := range parts {
			parts[j] = fmt.Sprintf("l%dw%d", i, j)
		}
		nodes[i] = domain.Node{ID: fmt.Sprintf("leaf-%d", i), Index: i, IsLeaf: true, Content: strings.Join(parts, " ")}
	}
	return fakeLeaves{nodes: nodes}
}

// With a one-token prompt overhead, a window of 101 and 50-token summaries
// leave exactly 50 tokens per call: five 10-token leaves.
func testOptions() Options {
	return Options{SummaryTokens: 50, MaxDepth: 8, MinViableChunkSize: 20}
}

func newTestBuilder(llm *fakeLLM, leaves fakeLeaves, opts Options) *Builder {
	return NewBuilder(llm, leaves, fakePrompts{}, opts)
}

func testDoc(leaves fakeLeaves) *domain.Document {
	contents := make([]string, len(leaves.nodes))
	for i, n := range leaves.nodes {
		contents[i] = n.Content
	}
	doc := domain.NewDocument("doc-1", "Doc", domain.DocumentTypeText, strings.Join(contents, " "))
	return &doc
}

func TestBuild_TenLeavesConvergeInTwoSteps(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 10}
	leaves := makeLeaves(10, 10)

	res, err := newTestBuilder(llm, leaves, testOptions()).Build(context.Background(), testDoc(leaves))
	require.NoError(t, err)

	assert.Equal(t, []int{10, 2, 1}, res.LevelCounts)
	assert.Equal(t, 2, res.Depth())
	assert.Len(t, res.Nodes, 13)
	assert.Equal(t, int64(3), llm.calls.Load())
	assert.Equal(t, 3*20, res.Usage.TotalTokens)

	root := res.Nodes[len(res.Nodes)-1]
	assert.Equal(t, res.RootID, root.ID)
	assert.True(t, root.IsRoot())
	assert.Equal(t, 2, root.Depth)
}

func TestBuild_SmallDocumentTakesOneStep(t *testing.T) {
	for _, n := range []int{1, 3} {
		t.Run(fmt.Sprintf("%d leaves", n), func(t *testing.T) {
			llm := &fakeLLM{window: 101, summaryLen: 5}
			leaves := makeLeaves(n, 10)

			res, err := newTestBuilder(llm, leaves, testOptions()).Build(context.Background(), testDoc(leaves))
			require.NoError(t, err)
			assert.Equal(t, []int{n, 1}, res.LevelCounts)
			assert.Equal(t, int64(1), llm.calls.Load())
		})
	}
}

func TestBuild_LinksParentsAndChildren(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 10}
	leaves := makeLeaves(7, 10)

	res, err := newTestBuilder(llm, leaves, testOptions()).Build(context.Background(), testDoc(leaves))
	require.NoError(t, err)

	byID := make(map[string]domain.Node, len(res.Nodes))
	for _, n := range res.Nodes {
		byID[n.ID] = n
	}
	for i, n := range res.Nodes[:7] {
		assert.True(t, n.IsLeaf)
		assert.Equal(t, 0, n.Depth)
		assert.Equal(t, i, n.Index)
		assert.Equal(t, "doc-1", n.DocumentID)
	}

	roots := 0
	for _, n := range res.Nodes {
		assert.Equal(t, n.Depth == 0, n.IsLeaf)
		if n.ParentID == nil {
			roots++
			continue
		}
		parent := byID[*n.ParentID]
		assert.Contains(t, parent.ChildIDs, n.ID)
		assert.Equal(t, n.Depth+1, parent.Depth)
	}
	assert.Equal(t, 1, roots)

	// The first group's prompt is its children's content in index order.
	first := byID[byID[res.RootID].ChildIDs[0]]
	var want []string
	for _, id := range first.ChildIDs {
		want = append(want, byID[id].Content)
	}
	assert.Contains(t, llm.prompts, "50 "+strings.Join(want, groupSeparator))
}

func TestBuild_PreflightRejectsBeforeAnyCall(t *testing.T) {
	llm := &fakeLLM{window: 60, summaryLen: 10}
	leaves := makeLeaves(10, 10)

	_, err := newTestBuilder(llm, leaves, testOptions()).Build(context.Background(), testDoc(leaves))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "index.max_group_size", cfgErr.Field)
	assert.Zero(t, llm.calls.Load())

	_, err = newTestBuilder(llm, leaves, testOptions()).Estimate(context.Background(), testDoc(leaves))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Zero(t, llm.calls.Load())
}

func TestBuild_MaxDepthWithManyNodesFails(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 10}
	leaves := makeLeaves(10, 10)
	opts := testOptions()
	opts.MaxDepth = 1

	res, err := newTestBuilder(llm, leaves, opts).Build(context.Background(), testDoc(leaves))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrConvergence)

	var convErr *domain.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, 2, convErr.Before)
}

func TestBuild_LevelThatDoesNotShrinkFails(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 10}
	leaves := makeLeaves(4, 60)

	_, err := newTestBuilder(llm, leaves, testOptions()).Build(context.Background(), testDoc(leaves))
	assert.ErrorIs(t, err, domain.ErrConvergence)
	assert.Zero(t, llm.calls.Load())
}

func TestBuild_SummaryFailureAbortsBuild(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 10, failOnCall: 2}
	leaves := makeLeaves(10, 10)

	res, err := newTestBuilder(llm, leaves, testOptions()).Build(context.Background(), testDoc(leaves))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrCollaborator)
}

func TestBuild_EmptyDocument(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 10}
	_, err := newTestBuilder(llm, fakeLeaves{}, testOptions()).Build(context.Background(), testDoc(fakeLeaves{}))
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)

	_, err = newTestBuilder(llm, fakeLeaves{err: domain.ErrInvalidInput}, testOptions()).
		Build(context.Background(), testDoc(fakeLeaves{}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuild_EmptySummaryIsOutputShapeError(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 0}
	leaves := makeLeaves(2, 10)

	_, err := newTestBuilder(llm, leaves, testOptions()).Build(context.Background(), testDoc(leaves))
	assert.ErrorIs(t, err, domain.ErrOutputShape)
}

func TestBuild_RollingContextIsSequential(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 3}
	leaves := makeLeaves(3, 10)
	opts := testOptions()
	opts.RollingContext = true

	res, err := newTestBuilder(llm, leaves, opts).Build(context.Background(), testDoc(leaves))
	require.NoError(t, err)

	assert.Equal(t, "", res.Nodes[0].Context)
	assert.Equal(t, "s1 s1 s1", res.Nodes[1].Context)
	assert.Equal(t, "s2 s2 s2", res.Nodes[2].Context)
	// Summaries compress their children and carry no context of their own.
	require.Len(t, res.Nodes, 4)
	assert.False(t, res.Nodes[3].IsLeaf)
	assert.Empty(t, res.Nodes[3].Context)

	require.Len(t, llm.rollingSeen, 2)
	assert.Equal(t, "50  | "+leaves.nodes[0].Content, llm.rollingSeen[0])
	assert.Equal(t, "50 s1 s1 s1 | "+leaves.nodes[1].Content, llm.rollingSeen[1])
	assert.Equal(t, int64(3), llm.calls.Load())
}

func TestEstimate_MatchesBuildShapeWithoutCalls(t *testing.T) {
	llm := &fakeLLM{window: 101, summaryLen: 10}
	leaves := makeLeaves(10, 10)
	opts := testOptions()
	opts.SummaryTokens = 10
	// Window 61 keeps the 50-token group budget with 10-token summaries.
	llm.window = 61

	est, err := newTestBuilder(llm, leaves, opts).Estimate(context.Background(), testDoc(leaves))
	require.NoError(t, err)
	assert.Zero(t, llm.calls.Load())

	assert.Equal(t, 100, est.DocumentTokens)
	assert.Equal(t, 50, est.MaxGroupSize)
	require.Len(t, est.Levels, 3)
	assert.Equal(t, []int{10, 2, 1}, []int{est.Levels[0].NodeCount, est.Levels[1].NodeCount, est.Levels[2].NodeCount})
	assert.Equal(t, 2, est.Depth())
	assert.Equal(t, 3, est.TotalCalls)

	// Level 1: two calls of 50 input + 1 overhead + 10 output.
	// Level 2: one call of 20 input + 1 overhead + 10 output.
	assert.Equal(t, 122, est.Levels[1].Tokens)
	assert.Equal(t, 31, est.Levels[2].Tokens)
	assert.Equal(t, 153, est.EstimatedTokens)
	assert.InDelta(t, 1.53, est.CostMultiplier, 1e-9)
}

func TestEstimate_RollingContext(t *testing.T) {
	llm := &fakeLLM{window: 61, summaryLen: 10}
	leaves := makeLeaves(3, 10)
	opts := testOptions()
	opts.SummaryTokens = 10
	opts.RollingContext = true

	est, err := newTestBuilder(llm, leaves, opts).Estimate(context.Background(), testDoc(leaves))
	require.NoError(t, err)

	// Overhead renders "10  | " to two tokens. Calls: (10+0+2+10) and (10+10+2+10).
	assert.Equal(t, 2, est.ContextCalls)
	assert.Equal(t, 54, est.ContextTokens)
	assert.Equal(t, 3, est.TotalCalls)
	assert.Zero(t, llm.calls.Load())
}
