// Package tokenize provides a local, network-free token approximation.
//
// Text is split into UAX#29 words (github.com/rivo/uniseg). Whitespace is
// attached to the preceding piece and long words are broken into runs of
// PieceRunes runes, which tracks BPE token counts closely enough for budget
// decisions. Joining the pieces returned by Encode always yields the input.
package tokenize

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// DefaultPieceRunes is the rune length of a sub-word piece.
const DefaultPieceRunes = 4

// Tokenizer counts and splits text into token pieces.
type Tokenizer interface {
	// Encode returns pieces whose concatenation equals text.
	Encode(text string) []string

	// Count returns len(Encode(text)) without allocating the pieces.
	Count(text string) int
}

// Words is the default Tokenizer.
type Words struct {
	pieceRunes int
}

// Option configures a Words tokenizer.
type Option func(*Words)

// WithPieceRunes sets the sub-word piece length.
func WithPieceRunes(n int) Option {
	return func(w *Words) {
		if n > 0 {
			w.pieceRunes = n
		}
	}
}

// New creates a word-based tokenizer.
func New(opts ...Option) *Words {
	w := &Words{pieceRunes: DefaultPieceRunes}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Encode implements Tokenizer.
func (w *Words) Encode(text string) []string {
	pieces := make([]string, 0, len(text)/w.pieceRunes+1)
	w.walk(text, func(p string) { pieces = append(pieces, p) })
	return pieces
}

// Count implements Tokenizer.
func (w *Words) Count(text string) int {
	n := 0
	w.walk(text, func(string) { n++ })
	return n
}

func (w *Words) walk(text string, emit func(string)) {
	var pending string
	state := -1
	rest := text
	for len(rest) > 0 {
		var word string
		word, rest, state = uniseg.FirstWordInString(rest, state)

		if isSpace(word) {
			pending += word
			continue
		}
		if pending != "" {
			emit(pending)
		}
		pending = w.split(word, emit)
	}
	if pending != "" {
		emit(pending)
	}
}

// split emits all but the last piece of word and returns the last one, so
// trailing whitespace can join it.
func (w *Words) split(word string, emit func(string)) string {
	runes := []rune(word)
	for len(runes) > w.pieceRunes {
		emit(string(runes[:w.pieceRunes]))
		runes = runes[w.pieceRunes:]
	}
	return string(runes)
}

func isSpace(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}
