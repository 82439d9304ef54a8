package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/normalisers/docx"
	"github.com/custodia-labs/recall/internal/normalisers/html"
	"github.com/custodia-labs/recall/internal/normalisers/markdown"
	"github.com/custodia-labs/recall/internal/normalisers/plaintext"
	"github.com/custodia-labs/recall/internal/normalisers/transcript"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches files to normalisers by extension. A normaliser with
// no extensions is a fallback for everything else.
type Registry struct {
	mu        sync.RWMutex
	byExt     map[string][]driven.Normaliser
	fallbacks []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]driven.Normaliser)}
}

// Defaults returns a registry with the built-in normalisers.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(transcript.New())
	r.Register(docx.New())
	return r
}

// Register adds a normaliser. Among normalisers for the same extension the
// highest priority wins.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts := n.Extensions()
	if len(exts) == 0 {
		r.fallbacks = insertByPriority(r.fallbacks, n)
		return
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		r.byExt[ext] = insertByPriority(r.byExt[ext], n)
	}
}

func insertByPriority(list []driven.Normaliser, n driven.Normaliser) []driven.Normaliser {
	list = append(list, n)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
	return list
}

// SupportedExtensions returns every extension with a dedicated normaliser, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Normalise extracts the text of raw and returns it as a hashed document.
// The title falls back to the file name.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n := r.pick(raw.Path)
	if n == nil {
		return nil, fmt.Errorf("%w: no normaliser for %q", domain.ErrUnsupportedType, filepath.Ext(raw.Path))
	}

	res, err := n.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", raw.Path, err)
	}

	title := res.Title
	if title == "" {
		title = filepath.Base(raw.Path)
	}
	doc := domain.NewDocument(raw.ID, title, res.Type, res.Content)
	for k, v := range raw.Metadata {
		doc.Metadata[k] = v
	}
	for k, v := range res.Metadata {
		doc.Metadata[k] = v
	}
	return &doc, nil
}

func (r *Registry) pick(path string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if list := r.byExt[strings.ToLower(filepath.Ext(path))]; len(list) > 0 {
		return list[0]
	}
	if len(r.fallbacks) > 0 {
		return r.fallbacks[0]
	}
	return nil
}
