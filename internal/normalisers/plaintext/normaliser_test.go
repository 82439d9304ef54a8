package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestNormaliser_Interface(t *testing.T) {
	n := New()
	assert.Nil(t, n.Extensions())
	assert.Equal(t, 5, n.Priority())
}

func TestNormaliser_Normalise(t *testing.T) {
	raw := &domain.RawDocument{
		Path:    "notes.txt",
		Content: []byte("\ufefffirst line  \r\nsecond\r\n\r\n\r\n\r\nthird\n\n"),
	}

	res, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentTypeText, res.Type)
	assert.Equal(t, "first line\nsecond\n\nthird", res.Content)
	assert.Empty(t, res.Title)
}

func TestNormaliser_TitleFromMetadata(t *testing.T) {
	raw := &domain.RawDocument{Content: []byte("x"), Metadata: map[string]any{"title": "Standup"}}

	res, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Standup", res.Title)
}

func TestNormaliser_RejectsBinary(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{Content: []byte{'a', 0, 'b'}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = New().Normalise(context.Background(), &domain.RawDocument{Content: []byte{0xff, 0xfe, 0xfd}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestNormaliser_NilInput(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only blank lines", "\n\n\n", ""},
		{"old mac endings", "a\rb", "a\nb"},
		{"keeps leading indent", "  code\n\tmore", "  code\n\tmore"},
		{"single blank kept", "a\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
