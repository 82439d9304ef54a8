package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text and is the fallback for unknown extensions.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns nil: plain text accepts any file.
func (n *Normaliser) Extensions() []string {
	return nil
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the text with line endings unified and trailing space
// removed. Binary content is rejected.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if bytes.IndexByte(raw.Content, 0) >= 0 || !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: binary content", domain.ErrUnsupportedType)
	}

	return &driven.NormaliseResult{
		Title:   titleFromMetadata(raw),
		Type:    domain.DocumentTypeText,
		Content: Clean(string(raw.Content)),
	}, nil
}

// Clean strips a byte order mark, converts CRLF and CR to LF, trims trailing
// space from every line and collapses runs of blank lines to one.
func Clean(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}

// titleFromMetadata returns a caller supplied title, if any.
func titleFromMetadata(raw *domain.RawDocument) string {
	if title, ok := raw.Metadata["title"].(string); ok {
		return title
	}
	return ""
}
