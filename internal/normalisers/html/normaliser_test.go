package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestNormaliser_Interface(t *testing.T) {
	n := New()
	assert.Equal(t, []string{".html", ".htm", ".xhtml"}, n.Extensions())
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		Path:    "/path/to/page.html",
		Content: []byte("<html><head><title>Test &amp; Page</title></head><body><p>Hello World</p></body></html>"),
	}

	res, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Test & Page", res.Title)
	assert.Equal(t, "Hello World", res.Content)
	assert.Equal(t, domain.DocumentTypeText, res.Type)
	assert.Equal(t, "html", res.Metadata["format"])
}

func TestNormalise_TitleOutsideHead(t *testing.T) {
	raw := &domain.RawDocument{Content: []byte("<title>Page</title><p>body</p>")}

	res, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Page", res.Title)
	assert.Equal(t, "body", res.Content)
}

func TestNormalise_NoTitle(t *testing.T) {
	res, err := New().Normalise(context.Background(), &domain.RawDocument{Content: []byte("<p>x</p>")})
	require.NoError(t, err)
	assert.Empty(t, res.Title)
}

func TestNormalise_NilInput(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraphs",
			in:   "<p>First  paragraph\n continues.</p><p>Second.</p>",
			want: "First paragraph continues.\n\nSecond.",
		},
		{
			name: "scripts and styles dropped",
			in:   "<style>p{color:red}</style><script>alert(1)</script><div>kept</div>",
			want: "kept",
		},
		{
			name: "comments dropped",
			in:   "a<!-- note\nspanning -->b",
			want: "ab",
		},
		{
			name: "line breaks",
			in:   "one<br>two<br/>three",
			want: "one\ntwo\nthree",
		},
		{
			name: "entities decoded",
			in:   "<li>&lt;tag&gt; &quot;q&quot;</li>",
			want: "<tag> \"q\"",
		},
		{
			name: "inline tags removed",
			in:   "<p>a <b>bold</b> <a href=\"x\">link</a></p>",
			want: "a bold link",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripHTML(tt.in))
		})
	}
}
