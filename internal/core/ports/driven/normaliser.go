package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Normaliser turns the raw bytes of one file format into document text.
type Normaliser interface {
	// Extensions returns the lower-case file extensions handled, with the dot.
	Extensions() []string

	// Priority returns the selection priority (higher = preferred).
	// Format normalisers return 50-89, fallbacks 1-9.
	Priority() int

	// Normalise extracts the text of a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult is the text a normaliser extracted.
type NormaliseResult struct {
	// Title is empty when the format carries none.
	Title string

	Type    domain.DocumentType
	Content string

	// Metadata is merged over the raw document's metadata.
	Metadata map[string]any
}
