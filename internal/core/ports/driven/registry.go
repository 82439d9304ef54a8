package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a file.
// It dispatches on file extension and falls back to the highest priority
// normaliser that accepts any extension.
type NormaliserRegistry interface {
	// Normalise builds a hashed document from a raw file.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedExtensions returns all extensions with a dedicated normaliser.
	SupportedExtensions() []string
}
