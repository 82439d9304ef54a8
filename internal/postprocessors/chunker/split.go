// Package chunker splits document text into ordered chunks under size and
// overlap constraints, and turns them into leaf nodes.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/binpack"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// Splitter splits text with a validated configuration.
// It holds no mutable state and is safe for concurrent use.
type Splitter struct {
	cfg       Config
	tok       tokenize.Tokenizer
	sentences SentenceTokenizer
}

// NewSplitter validates cfg and builds a splitter.
func NewSplitter(cfg Config, tok tokenize.Tokenizer) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tok == nil {
		tok = tokenize.New()
	}
	return &Splitter{
		cfg:       cfg,
		tok:       tok,
		sentences: NewSentenceTokenizer(cfg.Backend),
	}, nil
}

// Split validates cfg and splits text in one call.
func Split(text string, cfg Config, tok tokenize.Tokenizer) ([]string, error) {
	s, err := NewSplitter(cfg, tok)
	if err != nil {
		return nil, err
	}
	return s.Split(text)
}

// Config returns the splitter configuration.
func (s *Splitter) Config() Config { return s.cfg }

// Split returns the chunks of text in order. Whitespace-only input yields none.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	switch s.cfg.Strategy {
	case StrategySentence:
		return s.splitSentences(text)
	case StrategyWindow:
		return s.splitWindows(text)
	default:
		if IsLatin(text, s.cfg.LatinThreshold, s.cfg.LatinRatio) {
			return s.splitSentences(text)
		}
		return s.splitWindows(text)
	}
}

// size measures text in the configured unit.
func (s *Splitter) size(text string) int {
	if s.cfg.Unit == UnitChars {
		return utf8.RuneCountInString(text)
	}
	return s.tok.Count(text)
}

// pieces returns the indivisible units of text in the configured unit.
func (s *Splitter) pieces(text string) []string {
	if s.cfg.Unit == UnitChars {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	return s.tok.Encode(text)
}

func (s *Splitter) splitSentences(text string) ([]string, error) {
	units := s.mergeShort(s.sentences.Sentences(text))

	var err error
	if units, err = s.hardSplit(units); err != nil {
		return nil, err
	}

	var bins [][]string
	if s.cfg.Overlap == 0 {
		bins, err = binpack.AggregateByLength(units, s.cfg.MaxChunkSize, s.size)
	} else {
		bins, err = binpack.WindowByLength(units, s.cfg.MaxChunkSize, s.cfg.Overlap, s.size)
	}
	if err != nil {
		return nil, err
	}
	return joinBins(bins), nil
}

// mergeShort folds each sentence into its predecessor while either is under
// MinChunkSize and the merged unit still fits MaxChunkSize.
func (s *Splitter) mergeShort(sentences []string) []string {
	out := make([]string, 0, len(sentences))
	lastSize := 0
	for _, sent := range sentences {
		n := s.size(sent)
		if len(out) > 0 && (lastSize < s.cfg.MinChunkSize || n < s.cfg.MinChunkSize) &&
			lastSize+n <= s.cfg.MaxChunkSize {
			out[len(out)-1] += sent
			lastSize = s.size(out[len(out)-1])
			continue
		}
		out = append(out, sent)
		lastSize = n
	}
	return out
}

// hardSplit breaks every unit over MaxChunkSize into near-equal parts.
func (s *Splitter) hardSplit(units []string) ([]string, error) {
	out := make([]string, 0, len(units))
	for _, u := range units {
		if s.size(u) <= s.cfg.MaxChunkSize {
			out = append(out, u)
			continue
		}
		parts, err := binpack.ChunkEvenly(s.pieces(u), s.cfg.MaxChunkSize)
		if err != nil {
			return nil, err
		}
		out = append(out, joinBins(parts)...)
	}
	return out, nil
}

func (s *Splitter) splitWindows(text string) ([]string, error) {
	bins, err := binpack.ChunkWithOverlap(s.pieces(text), s.cfg.MaxChunkSize, s.cfg.Overlap)
	if err != nil {
		return nil, err
	}
	return joinBins(bins), nil
}

// IsLatin reports whether at least ratio of the runes in text are below threshold.
// Whitespace is not counted.
func IsLatin(text string, threshold rune, ratio float64) bool {
	total, latin := 0, 0
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		total++
		if r < threshold {
			latin++
		}
	}
	if total == 0 {
		return true
	}
	return float64(latin)/float64(total) >= ratio
}

func joinBins(bins [][]string) []string {
	out := make([]string, 0, len(bins))
	for _, b := range bins {
		out = append(out, strings.Join(b, ""))
	}
	return out
}
