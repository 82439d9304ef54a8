package postprocessors

import (
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// RegisterDefaults registers all built-in processors with the registry.
// The tokenizer is shared by every processor that measures tokens.
func RegisterDefaults(r *Registry, tok tokenize.Tokenizer) {
	r.Register("chunker", func(cfg map[string]any) (driven.PostProcessor, error) {
		return buildChunker(cfg, tok)
	})
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - max_chunk_size (int)
//   - min_chunk_size (int)
//   - overlap (int)
//   - strategy (string): sentence, window or adaptive
//   - backend (string): uniseg or regex
//   - unit (string): chars or tokens
func buildChunker(cfg map[string]any, tok tokenize.Tokenizer) (driven.PostProcessor, error) {
	opts := []chunker.Option{chunker.WithTokenizer(tok)}

	if cfg != nil {
		if size := getIntFromConfig(cfg, "max_chunk_size"); size > 0 {
			opts = append(opts, chunker.WithMaxChunkSize(size))
		}
		if _, ok := cfg["min_chunk_size"]; ok {
			opts = append(opts, chunker.WithMinChunkSize(getIntFromConfig(cfg, "min_chunk_size")))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
		if s := getStringFromConfig(cfg, "strategy"); s != "" {
			opts = append(opts, chunker.WithStrategy(chunker.Strategy(s)))
		}
		if b := getStringFromConfig(cfg, "backend"); b != "" {
			opts = append(opts, chunker.WithBackend(chunker.Backend(b)))
		}
		if u := getStringFromConfig(cfg, "unit"); u != "" {
			opts = append(opts, chunker.WithUnit(chunker.Unit(u)))
		}
	}

	p := chunker.New(opts...)
	if err := p.Config().Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getStringFromConfig(cfg map[string]any, key string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}
