package normalisers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

type fixedNormaliser struct {
	exts     []string
	priority int
	content  string
	err      error
}

func (f fixedNormaliser) Extensions() []string { return f.exts }
func (f fixedNormaliser) Priority() int        { return f.priority }

func (f fixedNormaliser) Normalise(_ context.Context, _ *domain.RawDocument) (*driven.NormaliseResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &driven.NormaliseResult{Content: f.content, Metadata: map[string]any{"by": f.content}}, nil
}

func TestDefaults_Dispatch(t *testing.T) {
	r := Defaults()
	ctx := context.Background()

	tests := []struct {
		path    string
		content string
		docType domain.DocumentType
		title   string
		text    string
	}{
		{"notes/plan.md", "# Plan\n\nship it", domain.DocumentTypeMarkdown, "Plan", "# Plan\n\nship it"},
		{"page.HTML", "<title>Page</title><p>body</p>", domain.DocumentTypeText, "Page", "body"},
		{"call.vtt", "WEBVTT\n\n00:01.000 --> 00:02.000\n<v Ana>hi</v>", domain.DocumentTypeTranscript, "call.vtt", "Ana: hi"},
		{"todo", "buy milk\r\n", domain.DocumentTypeText, "todo", "buy milk"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			doc, err := r.Normalise(ctx, &domain.RawDocument{ID: "id-1", Path: tt.path, Content: []byte(tt.content)})
			require.NoError(t, err)
			assert.Equal(t, "id-1", doc.ID)
			assert.Equal(t, tt.docType, doc.Type)
			assert.Equal(t, tt.title, doc.Title)
			assert.Equal(t, tt.text, doc.Content)
			assert.Equal(t, domain.HashContent(tt.docType, tt.text), doc.Hash)
		})
	}
}

func TestDefaults_SupportedExtensions(t *testing.T) {
	assert.Equal(t,
		[]string{".docx", ".htm", ".html", ".markdown", ".md", ".mdown", ".srt", ".vtt", ".xhtml"},
		Defaults().SupportedExtensions())
}

func TestRegistry_PriorityAndFallback(t *testing.T) {
	r := NewRegistry()
	r.Register(fixedNormaliser{exts: []string{".txt"}, priority: 10, content: "low"})
	r.Register(fixedNormaliser{exts: []string{".TXT"}, priority: 90, content: "high"})
	r.Register(fixedNormaliser{priority: 1, content: "fallback"})

	doc, err := r.Normalise(context.Background(), &domain.RawDocument{Path: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "high", doc.Content)

	doc, err = r.Normalise(context.Background(), &domain.RawDocument{Path: "a.csv"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", doc.Content)
}

func TestRegistry_MergesMetadata(t *testing.T) {
	r := NewRegistry()
	r.Register(fixedNormaliser{priority: 1, content: "x"})

	doc, err := r.Normalise(context.Background(), &domain.RawDocument{
		Path:     "a",
		Metadata: map[string]any{"path": "/abs/a", "by": "caller"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/abs/a", doc.Metadata["path"])
	assert.Equal(t, "x", doc.Metadata["by"])
}

func TestRegistry_Errors(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	_, err := r.Normalise(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.Normalise(ctx, &domain.RawDocument{Path: "a.bin"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	boom := errors.New("boom")
	r.Register(fixedNormaliser{priority: 1, err: boom})
	_, err = r.Normalise(ctx, &domain.RawDocument{Path: "a.bin"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "normalise a.bin")
}
