package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the readable text of an HTML page.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	content := string(raw.Content)

	return &driven.NormaliseResult{
		Title:    extractTitle(content),
		Type:     domain.DocumentTypeText,
		Content:  stripHTML(content),
		Metadata: map[string]any{"format": "html"},
	}, nil
}

var (
	titleTag     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedTags  = regexp.MustCompile(`(?is)<(script|style|noscript|head|title|svg|template)\b[^>]*>.*?</(script|style|noscript|head|title|svg|template)>`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTags    = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|header|footer|ul|ol)\b[^>]*>`)
	lineTags     = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags      = regexp.MustCompile(`<[^>]+>`)
	multiSpaces  = regexp.MustCompile(`[ \t\f\v]+`)
)

func extractTitle(content string) string {
	m := titleTag.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(multiSpaces.ReplaceAllString(html.UnescapeString(m[1]), " "))
}

// stripHTML removes markup. Block elements become blank lines so paragraphs
// survive into segmentation.
func stripHTML(content string) string {
	content = droppedTags.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(content)
	content = blockTags.ReplaceAllString(content, "\n\n")
	content = lineTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return plaintext.Clean(strings.Join(lines, "\n"))
}
