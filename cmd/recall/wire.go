package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"

	"github.com/custodia-labs/recall/internal/adapters/driven/ai"
	"github.com/custodia-labs/recall/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall/internal/adapters/driven/llm/invoke"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall/internal/adapters/driving/cli"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/core/services/index"
	"github.com/custodia-labs/recall/internal/core/services/retrieval"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/normalisers"
	"github.com/custodia-labs/recall/internal/postprocessors"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// storage is the set of ports one backend provides.
type storage struct {
	docs     driven.DocumentStore
	nodes    driven.NodeStore
	nodeRank driven.StorageQuery[domain.Node]
	memories driven.MemoryStore
	memRank  driven.StorageQuery[domain.Memory]
	toucher  driven.AccessToucher
	calls    driven.CallLogStore
	close    func() error
}

func openStorage(settings domain.StorageSettings, dataDir string) (*storage, error) {
	switch settings.Backend {
	case domain.StoragePgvector:
		store, err := pgvector.New(pgvector.Config{DSN: settings.DSN, RunMigrations: true})
		if err != nil {
			return nil, fmt.Errorf("open pgvector: %w", err)
		}
		mem := store.Memories()
		return &storage{
			docs: store.DocumentStore(), nodes: store.NodeStore(), nodeRank: store.Nodes(),
			memories: mem, memRank: mem, toucher: mem,
			calls: store.CallLogStore(), close: store.Close,
		}, nil
	default:
		store, err := sqlite.NewStore(filepath.Join(dataDir, "data"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		mem := store.Memories()
		return &storage{
			docs: store.DocumentStore(), nodes: store.NodeStore(), nodeRank: store.Nodes(),
			memories: mem, memRank: mem, toucher: mem,
			calls: store.CallLogStore(), close: store.Close,
		}, nil
	}
}

// splitter builds the segmentation pipeline from the segmenter settings.
func splitter(settings domain.SegmenterSettings, tok tokenize.Tokenizer) (*postprocessors.Pipeline, error) {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry, tok)
	return registry.BuildPipeline([]string{"chunker"}, map[string]map[string]any{
		"chunker": {
			"strategy":       settings.Strategy,
			"backend":        settings.Backend,
			"unit":           settings.Unit,
			"max_chunk_size": settings.MaxChunkSize,
			"min_chunk_size": settings.MinChunkSize,
			"overlap":        settings.Overlap,
		},
	})
}

func bootstrap(_ context.Context, opts cli.Options) (*cli.Services, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall")
	}

	configStore, err := file.NewConfigStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	store, err := openStorage(settings.Storage, dataDir)
	if err != nil {
		return nil, err
	}

	tok := tokenize.New()
	pipeline, err := splitter(settings.Segmenter, tok)
	if err != nil {
		_ = store.close()
		return nil, err
	}
	prompts, err := file.NewPromptStore(filepath.Join(dataDir, "prompts"))
	if err != nil {
		_ = store.close()
		return nil, err
	}

	metrics := invoke.NewMetrics("recall")
	out := &cli.Services{
		Settings:    settingsService,
		Normalisers: normalisers.Defaults(),
		Splitter:    pipeline,
		Tokens:      tok,
		Calls:       store.calls,
	}

	aiResult, err := ai.Init(settings, tok, ai.Observers{
		CallLog:        store.calls,
		Metrics:        metrics,
		TracerProvider: otel.GetTracerProvider(),
	})
	if err != nil {
		logger.Debug("AI services unavailable: %v", err)
		out.Unavailable = err
		aiResult = &ai.InitResult{}
	}
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}

	var missing []error
	var builder services.TreeBuilder
	if aiResult.LLMClient != nil {
		builder = index.NewBuilder(aiResult.LLMClient, pipeline, prompts, index.OptionsFromSettings(settings.Index))
	} else {
		missing = append(missing, fmt.Errorf("%w: configure one with `recall settings llm`", domain.ErrLLMUnavailable))
	}

	var embedder driven.EmbeddingClient
	if aiResult.EmbeddingClient != nil {
		embedder = aiResult.EmbeddingClient
		out.Search = services.NewSearchService(
			retrieval.NewEngine[domain.Node](embedder, store.nodeRank, tok),
			retrieval.NewRecencyEngine[domain.Memory](embedder, store.memRank, store.toucher, tok),
		)
		out.Memories = services.NewMemoryService(embedder, store.memories)
	} else {
		missing = append(missing, fmt.Errorf("%w: configure one with `recall settings embedding`", domain.ErrEmbeddingUnavailable))
	}
	if out.Unavailable == nil {
		out.Unavailable = errors.Join(missing...)
	}
	out.Documents = services.NewDocumentService(builder, embedder, store.docs, store.nodes)

	out.Close = func() {
		logCallMetrics(metrics)
		aiResult.Close()
		if err := store.close(); err != nil {
			logger.Warnw("close storage", "error", err)
		}
	}
	return out, nil
}

// logCallMetrics writes the LLM call counters at debug level.
func logCallMetrics(m *invoke.Metrics) {
	if !logger.IsVerbose() {
		return
	}
	families, err := m.Registry().Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make([]any, 0, 2*len(metric.GetLabel()))
			for _, l := range metric.GetLabel() {
				labels = append(labels, l.GetName(), l.GetValue())
			}
			switch {
			case metric.GetCounter() != nil:
				logger.Debugw(mf.GetName(), append(labels, "value", metric.GetCounter().GetValue())...)
			case metric.GetHistogram() != nil:
				h := metric.GetHistogram()
				logger.Debugw(mf.GetName(), append(labels, "count", h.GetSampleCount(), "sum", h.GetSampleSum())...)
			}
		}
	}
}
