package chunker

import (
	"regexp"

	"github.com/rivo/uniseg"
)

// SentenceTokenizer splits text into sentences whose concatenation is the input.
type SentenceTokenizer interface {
	Sentences(text string) []string
}

// NewSentenceTokenizer returns the tokenizer for a backend.
func NewSentenceTokenizer(b Backend) SentenceTokenizer {
	if b == BackendRegex {
		return regexSentences{}
	}
	return unisegSentences{}
}

type unisegSentences struct{}

func (unisegSentences) Sentences(text string) []string {
	var out []string
	state := -1
	rest := text
	for len(rest) > 0 {
		var s string
		s, rest, state = uniseg.FirstSentenceInString(rest, state)
		out = append(out, s)
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`[^.!?。！？]+[.!?。！？]+\s*`)

type regexSentences struct{}

func (regexSentences) Sentences(text string) []string {
	var out []string
	pos := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		// Text the pattern skipped, such as leading punctuation, joins the next sentence.
		out = append(out, text[pos:loc[1]])
		pos = loc[1]
	}
	if pos < len(text) {
		out = append(out, text[pos:])
	}
	return out
}
