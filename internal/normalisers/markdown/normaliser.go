package markdown

import (
	"context"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents. Headings, lists and code are kept
// since summaries read better with the structure intact; front matter,
// images, link targets and comments are removed.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".md", ".markdown", ".mdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic format normaliser, higher than plaintext
}

var (
	frontMatter = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n?`)
	images      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	links       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	comments    = regexp.MustCompile(`(?s)<!--.*?-->`)
	heading1    = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*#*[ \t]*$`)
)

// Normalise converts a markdown file to indexable text.
// Front matter keys become metadata; its title wins over the first H1.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	meta := map[string]any{"format": "markdown"}

	if m := frontMatter.FindStringSubmatch(content); m != nil {
		var fm map[string]any
		if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
			logger.Warnw("ignoring unparseable front matter", "file", raw.Path, "error", err)
		}
		for k, v := range fm {
			meta[k] = v
		}
		content = content[len(m[0]):]
	}

	content = comments.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")

	title, _ := meta["title"].(string)
	if title == "" {
		if m := heading1.FindStringSubmatch(content); m != nil {
			title = m[1]
		}
	}

	return &driven.NormaliseResult{
		Title:    title,
		Type:     domain.DocumentTypeMarkdown,
		Content:  plaintext.Clean(content),
		Metadata: meta,
	}, nil
}
