package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/logging"
	"github.com/hupe1980/councilmesh/memory"
	"github.com/hupe1980/councilmesh/model"
	manthropic "github.com/hupe1980/councilmesh/model/anthropic"
	mopenai "github.com/hupe1980/councilmesh/model/openai"
	"github.com/hupe1980/councilmesh/rag"
	"github.com/hupe1980/councilmesh/report"
	"github.com/hupe1980/councilmesh/roster"
)

// app bundles the collaborators a run command needs. One app is wired per
// invocation; memory and the knowledge index live for its lifetime, so
// passing several scenarios runs them against a shared memory.
type app struct {
	roster    *roster.Roster
	gen       model.Generator
	memory    core.MemoryStore
	retriever core.KnowledgeRetriever
	writer    *report.Writer
	logger    logging.Logger
	modelName string
}

func wireApp(ctx context.Context, cfg runConfig) (*app, error) {
	logger := newRunLogger(cfg.Verbose)

	r, err := roster.Load(cfg.RosterPath)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	gen, modelName, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		roster:    r,
		gen:       gen,
		logger:    logger,
		modelName: modelName,
		writer: report.NewWriter(func(o *report.Options) {
			o.OutputDir = cfg.OutputDir
			o.Logger = logger
		}),
	}

	if cfg.Memory {
		store, err := memory.NewStore(embedder, func(o *memory.Options) {
			o.Generator = gen
			o.Logger = logger
		})
		if err != nil {
			return nil, fmt.Errorf("wire memory store: %w", err)
		}
		a.memory = store
	}

	if cfg.KnowledgeDir != "" {
		index, err := buildKnowledgeIndex(ctx, cfg.KnowledgeDir, embedder, logger)
		if err != nil {
			return nil, err
		}
		a.retriever = index
	}

	return a, nil
}

func newGenerator(cfg runConfig) (model.Generator, string, error) {
	switch cfg.Provider {
	case "openai":
		name := cfg.Model
		gen := mopenai.NewGenerator(func(o *mopenai.Options) {
			if name != "" {
				o.Model = name
			}
			o.Temperature = cfg.Temperature
		})
		return gen, gen.Info().Name, nil
	case "anthropic":
		gen := manthropic.NewGenerator(func(o *manthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
		})
		return gen, gen.Info().Name, nil
	case "mock":
		gen := model.NewMockGenerator("mock")
		return gen, gen.Info().Name, nil
	default:
		return nil, "", core.NewConfigError("provider", "unknown provider %q (want openai, anthropic or mock)", cfg.Provider)
	}
}

// newEmbedder picks the embedding backend. Only OpenAI exposes an embeddings
// endpoint, so other providers fall back to deterministic hash vectors,
// which keeps memory and retrieval usable offline at reduced fidelity.
func newEmbedder(cfg runConfig) (core.Embedder, error) {
	if cfg.Provider == "openai" {
		return rag.NewCachedEmbedder(rag.NewOpenAIEmbedder())
	}
	return rag.NewMockEmbedder(0), nil
}

func buildKnowledgeIndex(ctx context.Context, dir string, embedder core.Embedder, logger logging.Logger) (*rag.Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge directory: %w", err)
	}

	var docs []rag.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read knowledge document %s: %w", e.Name(), err)
		}
		docs = append(docs, rag.Document{
			Source:  e.Name(),
			Content: string(data),
		})
	}
	if len(docs) == 0 {
		return nil, core.NewConfigError("knowledge", "no .md or .txt documents found in %s", dir)
	}

	index, err := rag.NewIndex(embedder, func(o *rag.IndexOptions) {
		o.Logger = logger
	})
	if err != nil {
		return nil, err
	}
	if err := index.Ingest(ctx, docs...); err != nil {
		return nil, fmt.Errorf("ingest knowledge documents: %w", err)
	}
	logger.Info("knowledge index ready", "documents", len(docs))
	return index, nil
}

func newRunLogger(verbose bool) logging.Logger {
	cfg := logging.DefaultLoggerConfig()
	cfg.Format = "text"
	cfg.Output = os.Stderr
	cfg.Component = "cli"
	if verbose {
		cfg.Level = logging.LogLevelDebug
	} else {
		cfg.Level = logging.LogLevelWarn
	}
	return logging.NewLogger(cfg)
}
