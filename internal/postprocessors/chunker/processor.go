package chunker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// Processor splits document content into leaf nodes.
// It implements the PostProcessor interface.
type Processor struct {
	cfg Config
	tok tokenize.Tokenizer
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(p *Processor) {
		p.cfg = cfg
	}
}

// WithMaxChunkSize sets the largest chunk size.
func WithMaxChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.cfg.MaxChunkSize = size
		}
	}
}

// WithMinChunkSize sets the short-sentence merge threshold.
func WithMinChunkSize(size int) Option {
	return func(p *Processor) {
		if size >= 0 {
			p.cfg.MinChunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.cfg.Overlap = overlap
	}
}

// WithStrategy sets the splitting strategy.
func WithStrategy(s Strategy) Option {
	return func(p *Processor) {
		p.cfg.Strategy = s
	}
}

// WithBackend sets the sentence backend.
func WithBackend(b Backend) Option {
	return func(p *Processor) {
		p.cfg.Backend = b
	}
}

// WithUnit sets the size unit.
func WithUnit(u Unit) Option {
	return func(p *Processor) {
		p.cfg.Unit = u
	}
}

// WithTokenizer sets the tokenizer used for token units.
func WithTokenizer(tok tokenize.Tokenizer) Option {
	return func(p *Processor) {
		if tok != nil {
			p.tok = tok
		}
	}
}

// New creates a new chunker processor with the given options.
// The configuration is validated when Process runs.
func New(opts ...Option) *Processor {
	p := &Processor{
		cfg: DefaultConfig(),
		tok: tokenize.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Config returns the processor configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// Process splits the document content into depth-0 nodes with sequential indexes.
// Input nodes are ignored; this processor creates new nodes from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Node) ([]domain.Node, error) {
	chunks, err := Split(doc.Content, p.cfg, p.tok)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	nodes := make([]domain.Node, 0, len(chunks))
	for i, content := range chunks {
		nodes = append(nodes, domain.Node{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    content,
			IsLeaf:     true,
			Depth:      0,
			CreatedAt:  now,
		})
	}
	return nodes, nil
}
