package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/normalisers"
)

type mockDocuments struct {
	ingested []*domain.Document
	result   *driving.IngestResult
	estimate *domain.TokenEstimate
	docs     []domain.Document
	nodes    []domain.Node
	deleted  []string
	err      error
}

func (m *mockDocuments) Ingest(_ context.Context, doc *domain.Document) (*driving.IngestResult, error) {
	m.ingested = append(m.ingested, doc)
	if m.err != nil {
		return nil, m.err
	}
	res := *m.result
	res.Document = *doc
	return &res, nil
}

func (m *mockDocuments) Estimate(_ context.Context, _ *domain.Document) (*domain.TokenEstimate, error) {
	return m.estimate, m.err
}

func (m *mockDocuments) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocuments) List(_ context.Context) ([]domain.Document, error) { return m.docs, m.err }

func (m *mockDocuments) Nodes(_ context.Context, _ string) ([]domain.Node, error) { return m.nodes, m.err }

func (m *mockDocuments) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

type mockSearch struct {
	last     driving.SearchRequest
	target   string
	hits     []driving.SearchHit
	err      error
	waitDone bool
}

func (m *mockSearch) SearchNodes(_ context.Context, req driving.SearchRequest) ([]driving.SearchHit, error) {
	m.last, m.target = req, "nodes"
	return m.hits, m.err
}

func (m *mockSearch) SearchMemories(_ context.Context, req driving.SearchRequest) ([]driving.SearchHit, error) {
	m.last, m.target = req, "memories"
	return m.hits, m.err
}

func (m *mockSearch) Wait() { m.waitDone = true }

type mockMemories struct {
	content    string
	importance int
	meta       map[string]any
	list       []domain.Memory
	err        error
}

func (m *mockMemories) Add(_ context.Context, content string, importance int, meta map[string]any) (*domain.Memory, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.content, m.importance, m.meta = content, importance, meta
	return &domain.Memory{ID: "mem-1", Content: content, Importance: importance, Embedding: []float32{1}}, nil
}

func (m *mockMemories) List(_ context.Context) ([]domain.Memory, error) { return m.list, m.err }

// testServices returns services backed by in-memory settings.
func testServices() *Services {
	return &Services{
		Settings:    services.NewSettingsService(memory.NewConfigStore(), nil),
		Normalisers: normalisers.Defaults(),
	}
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes args against svc and returns everything printed.
func runCLI(t *testing.T, svc *Services, args ...string) (string, error) {
	t.Helper()
	oldApp, oldBoot := app, bootstrap
	app, bootstrap = svc, nil
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		app, bootstrap = oldApp, oldBoot
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
