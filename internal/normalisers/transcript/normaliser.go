// Package transcript provides a Normaliser for WebVTT and SRT subtitle
// files. Cue numbers and timings are dropped and consecutive cues from the
// same speaker are merged into one turn.
package transcript

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles subtitle transcripts.
type Normaliser struct{}

// New creates a new transcript normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".vtt", ".srt"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// turn is one speaker's uninterrupted run of cues.
type turn struct {
	speaker string
	text    []string
}

var (
	cueIndex     = regexp.MustCompile(`^\d+$`)
	voiceTag     = regexp.MustCompile(`^<v(?:\.[\w.]+)?\s+([^>]+)>`)
	speakerLabel = regexp.MustCompile(`^([A-Z][\w .'-]{0,40}):\s+`)
	anyTag       = regexp.MustCompile(`<[^>]+>`)
)

// Normalise renders the transcript as one "Speaker: text" line per turn.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	turns := parse(plaintext.Clean(string(raw.Content)))
	lines := make([]string, 0, len(turns))
	seen := make(map[string]bool)
	var speakers []string
	for _, t := range turns {
		text := strings.Join(t.text, " ")
		if t.speaker == "" {
			lines = append(lines, text)
			continue
		}
		lines = append(lines, t.speaker+": "+text)
		if !seen[t.speaker] {
			seen[t.speaker] = true
			speakers = append(speakers, t.speaker)
		}
	}
	sort.Strings(speakers)

	meta := map[string]any{"format": strings.TrimPrefix(strings.ToLower(filepath.Ext(raw.Path)), ".")}
	if len(speakers) > 0 {
		meta["speakers"] = speakers
	}
	return &driven.NormaliseResult{
		Type:     domain.DocumentTypeTranscript,
		Content:  strings.Join(lines, "\n"),
		Metadata: meta,
	}, nil
}

func parse(content string) []turn {
	var turns []turn
	for _, block := range strings.Split(content, "\n\n") {
		speaker, text, ok := parseCue(strings.Split(block, "\n"))
		if !ok {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].speaker == speaker {
			turns[n-1].text = append(turns[n-1].text, text)
			continue
		}
		turns = append(turns, turn{speaker: speaker, text: []string{text}})
	}
	return turns
}

// parseCue extracts the speaker and text of one cue block. Header, NOTE,
// STYLE and REGION blocks and cues without text report false.
func parseCue(lines []string) (speaker, text string, ok bool) {
	if len(lines) == 0 {
		return "", "", false
	}
	switch first := strings.TrimSpace(lines[0]); {
	case strings.HasPrefix(first, "WEBVTT"), strings.HasPrefix(first, "NOTE"),
		strings.HasPrefix(first, "STYLE"), strings.HasPrefix(first, "REGION"):
		return "", "", false
	}

	// Cue identifiers and SRT indexes precede the timing line.
	timed := false
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			lines, timed = lines[i+1:], true
			break
		}
	}

	var parts []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !timed && cueIndex.MatchString(line) {
			continue
		}
		if speaker == "" {
			if m := voiceTag.FindStringSubmatch(line); m != nil {
				speaker = strings.TrimSpace(m[1])
			} else if m := speakerLabel.FindStringSubmatch(line); m != nil {
				speaker = strings.TrimSpace(m[1])
				line = line[len(m[0]):]
			}
		}
		line = strings.TrimSpace(anyTag.ReplaceAllString(line, ""))
		if line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) == 0 {
		return "", "", false
	}
	return speaker, strings.Join(parts, " "), true
}
