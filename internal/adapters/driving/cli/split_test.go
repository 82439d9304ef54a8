package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// paragraphSplitter emits one leaf per blank-line separated paragraph.
type paragraphSplitter struct{ err error }

func (p paragraphSplitter) Process(_ context.Context, doc *domain.Document) ([]domain.Node, error) {
	if p.err != nil {
		return nil, p.err
	}
	var nodes []domain.Node
	for i, para := range strings.Split(doc.Content, "\n\n") {
		nodes = append(nodes, domain.Node{Index: i, Content: para, IsLeaf: true})
	}
	return nodes, nil
}

type wordTokens struct{}

func (wordTokens) Count(s string) int { return len(strings.Fields(s)) }

func TestSplitCmd(t *testing.T) {
	path := writeFile(t, "a.txt", "one two three\n\nfour five")
	svc := testServices()
	svc.Splitter = paragraphSplitter{}
	svc.Tokens = wordTokens{}

	out, err := runCLI(t, svc, "split", path)
	require.NoError(t, err)
	assert.Contains(t, out, "--- 0 (3 tokens) ---\none two three")
	assert.Contains(t, out, "--- 1 (2 tokens) ---\nfour five")
	assert.Contains(t, out, "2 passages")
}

func TestSplitCmd_JSON(t *testing.T) {
	path := writeFile(t, "a.txt", "one\n\ntwo")
	svc := testServices()
	svc.Splitter = paragraphSplitter{}

	out, err := runCLI(t, svc, "split", path, "-o", "json")
	require.NoError(t, err)

	var chunks []splitChunk
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	assert.Equal(t, []splitChunk{{Index: 0, Content: "one"}, {Index: 1, Content: "two"}}, chunks)
}

func TestSplitCmd_Errors(t *testing.T) {
	path := writeFile(t, "a.txt", "text")

	_, err := runCLI(t, testServices(), "split", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segmenter not configured")

	svc := testServices()
	svc.Splitter = paragraphSplitter{err: errors.New("bad size")}
	_, err = runCLI(t, svc, "split", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "split failed: bad size")
}
