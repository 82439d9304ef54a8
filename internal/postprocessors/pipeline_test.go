package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined nodes.
type mockProcessor struct {
	name  string
	nodes []domain.Node
	err   error
	seen  []domain.Node
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.Document, nodes []domain.Node) ([]domain.Node, error) {
	m.seen = nodes
	if m.err != nil {
		return nil, m.err
	}
	if m.nodes != nil {
		return m.nodes, nil
	}
	return nodes, nil
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	assert.Equal(t, 0, p.Len())

	p.Add(&mockProcessor{name: "test"})
	assert.Equal(t, 1, p.Len())
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)

	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	nodes, err := NewPipeline().Process(context.Background(), &domain.Document{ID: "doc", Content: "text"})

	require.NoError(t, err)
	assert.Nil(t, nodes)
}

func TestPipeline_Process_ChainsOutput(t *testing.T) {
	first := &mockProcessor{name: "first", nodes: []domain.Node{{ID: "a"}, {ID: "b"}}}
	second := &mockProcessor{name: "second"}
	p := NewPipeline(first, second)

	nodes, err := p.Process(context.Background(), &domain.Document{ID: "doc"})
	require.NoError(t, err)

	assert.Nil(t, first.seen)
	assert.Equal(t, first.nodes, second.seen)
	assert.Len(t, nodes, 2)
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(&mockProcessor{name: "broken", err: boom})

	_, err := p.Process(context.Background(), &domain.Document{ID: "doc"})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "processor broken")
}

func TestPipeline_Process_StopsWhenCancelled(t *testing.T) {
	first := &mockProcessor{name: "first", nodes: []domain.Node{{ID: "a"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(first).Process(ctx, &domain.Document{ID: "doc"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, first.seen)
}

func TestPipeline_Names(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "chunker"}, &mockProcessor{name: "dedupe"})

	assert.Equal(t, []string{"chunker", "dedupe"}, p.Names())
	assert.Empty(t, NewPipeline().Names())
}
