package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestIndexCmd_RequiresFile(t *testing.T) {
	_, err := runCLI(t, testServices(), "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIndexCmd_IngestsFile(t *testing.T) {
	path := writeFile(t, "notes.md", "# Notes\n\nsome text")
	docs := &mockDocuments{result: &driving.IngestResult{NodeCount: 5, LevelCounts: []int{4, 1}}}
	svc := testServices()
	svc.Documents = docs

	out, err := runCLI(t, svc, "index", path)
	require.NoError(t, err)

	require.Len(t, docs.ingested, 1)
	doc := docs.ingested[0]
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, doc.ID)
	assert.Equal(t, "Notes", doc.Title)
	assert.Equal(t, abs, doc.Metadata["path"])
	assert.Equal(t, domain.DocumentTypeMarkdown, doc.Type)
	assert.Equal(t, domain.HashContent(domain.DocumentTypeMarkdown, "# Notes\n\nsome text"), doc.Hash)
	assert.Contains(t, out, "indexed")
	assert.Contains(t, out, "5 nodes, depth 1")
}

func TestIndexCmd_Skipped(t *testing.T) {
	path := writeFile(t, "a.txt", "hello")
	svc := testServices()
	svc.Documents = &mockDocuments{result: &driving.IngestResult{Skipped: true, NodeCount: 2}}

	out, err := runCLI(t, svc, "index", path)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "unchanged")
}

func TestIndexCmd_JSON(t *testing.T) {
	path := writeFile(t, "a.txt", "hello")
	svc := testServices()
	svc.Documents = &mockDocuments{result: &driving.IngestResult{RootID: "root-1", NodeCount: 2}}

	out, err := runCLI(t, svc, "index", path, "--id", "doc-9", "-o", "json")
	require.NoError(t, err)

	var res driving.IngestResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "root-1", res.RootID)
	assert.Equal(t, "doc-9", res.Document.ID)
}

func TestIndexCmd_IDNeedsOneFile(t *testing.T) {
	a := writeFile(t, "a.txt", "a")
	b := writeFile(t, "b.txt", "b")
	svc := testServices()
	svc.Documents = &mockDocuments{result: &driving.IngestResult{}}

	_, err := runCLI(t, svc, "index", a, b, "--id", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--id needs exactly one file")
}

func TestIndexCmd_ServiceError(t *testing.T) {
	path := writeFile(t, "a.txt", "hello")
	svc := testServices()
	svc.Documents = &mockDocuments{err: domain.ErrLLMUnavailable}

	_, err := runCLI(t, svc, "index", path)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestIndexCmd_MissingFile(t *testing.T) {
	svc := testServices()
	svc.Documents = &mockDocuments{result: &driving.IngestResult{}}

	_, err := runCLI(t, svc, "index", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

func TestIndexCmd_TitleFlagAndTranscript(t *testing.T) {
	path := writeFile(t, "standup.vtt", "WEBVTT\n\n00:01.000 --> 00:02.000\n<v Ana>shipped it</v>\n")
	docs := &mockDocuments{result: &driving.IngestResult{}}
	svc := testServices()
	svc.Documents = docs

	_, err := runCLI(t, svc, "index", path, "--title", "Standup")
	require.NoError(t, err)

	require.Len(t, docs.ingested, 1)
	doc := docs.ingested[0]
	assert.Equal(t, "Standup", doc.Title)
	assert.Equal(t, domain.DocumentTypeTranscript, doc.Type)
	assert.Equal(t, "Ana: shipped it", doc.Content)
}

func TestIndexCmd_RejectsBinary(t *testing.T) {
	path := writeFile(t, "blob.bin", "a\x00b")
	docs := &mockDocuments{result: &driving.IngestResult{}}
	svc := testServices()
	svc.Documents = docs

	_, err := runCLI(t, svc, "index", path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Empty(t, docs.ingested)
}

func TestWatchFiles_ReindexesOnWrite(t *testing.T) {
	path := writeFile(t, "watched.txt", "v1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var changed []string
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, []string{path}, func(p string) {
			mu.Lock()
			changed = append(changed, p)
			mu.Unlock()
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0600))
	require.NoError(t, os.WriteFile(path, []byte("v3"), 0600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changed) == 1
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, []string{path}, changed)
	mu.Unlock()
}

func TestDocumentListCmd(t *testing.T) {
	svc := testServices()
	svc.Documents = &mockDocuments{docs: []domain.Document{
		{ID: "doc-1", Title: "Notes", Type: domain.DocumentTypeText},
	}}

	out, err := runCLI(t, svc, "document", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Notes")
	assert.Contains(t, out, "doc-1")

	svc.Documents = &mockDocuments{}
	out, err = runCLI(t, svc, "document", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents indexed.")
}

func TestDocumentTreeCmd(t *testing.T) {
	root := "root"
	svc := testServices()
	svc.Documents = &mockDocuments{nodes: []domain.Node{
		{ID: "l0", Depth: 0, Index: 0, Content: "first leaf", ParentID: &root, IsLeaf: true},
		{ID: "l1", Depth: 0, Index: 1, Content: "second leaf", ParentID: &root, IsLeaf: true},
		{ID: "root", Depth: 1, Index: 0, Content: "the summary", ChildIDs: []string{"l0", "l1"}},
	}}

	out, err := runCLI(t, svc, "document", "tree", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "[d1 #0] the summary\n  [d0 #0] first leaf\n  [d0 #1] second leaf")
}

func TestDocumentDeleteCmd(t *testing.T) {
	docs := &mockDocuments{}
	svc := testServices()
	svc.Documents = docs

	out, err := runCLI(t, svc, "document", "delete", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, docs.deleted)
	assert.Contains(t, out, "Deleted doc-1")
}

func TestEstimateCmd(t *testing.T) {
	path := writeFile(t, "a.txt", "hello world")
	svc := testServices()
	svc.Documents = &mockDocuments{estimate: &domain.TokenEstimate{
		DocumentTokens: 100,
		MaxGroupSize:   40,
		Levels: []domain.LevelEstimate{
			{Depth: 0, NodeCount: 10},
			{Depth: 1, NodeCount: 3, Calls: 3, Tokens: 120},
			{Depth: 2, NodeCount: 1, Calls: 1, Tokens: 33},
		},
		TotalCalls:      4,
		EstimatedTokens: 153,
		CostMultiplier:  1.53,
	}}

	out, err := runCLI(t, svc, "estimate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Estimate for a.txt")
	assert.Contains(t, out, "4 calls, 153 tokens")
	assert.Contains(t, out, "1.53x")
}
