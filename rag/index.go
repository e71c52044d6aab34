package rag

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hupe1980/councilmesh/core"
	"github.com/hupe1980/councilmesh/logging"
)

// Document is a briefing document (or fragment) to ingest into the index.
type Document struct {
	ID       string
	Source   string
	Content  string
	Metadata map[string]string
}

// IndexOptions configure an Index.
type IndexOptions struct {
	// Collection names the chromem collection; one per council is typical.
	Collection string

	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// Index is an embedded vector index over briefing documents, backed by
// chromem-go so a deliberation run needs no external services. It implements
// core.KnowledgeRetriever.
type Index struct {
	embedder core.Embedder
	logger   logging.Logger
	col      *chromem.Collection
}

var _ core.KnowledgeRetriever = (*Index)(nil)

// NewIndex creates an empty in-memory index around the given embedder.
func NewIndex(embedder core.Embedder, optFns ...func(o *IndexOptions)) (*Index, error) {
	opts := IndexOptions{
		Collection: "briefings",
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if embedder == nil {
		return nil, core.NewConfigError("rag.embedder", "embedder is required")
	}

	col, err := chromem.NewDB().CreateCollection(opts.Collection, nil, nil)
	if err != nil {
		return nil, core.NewCollaboratorError(core.CollaboratorIndexUnavailable, "create collection", err)
	}
	return &Index{
		embedder: embedder,
		logger:   logging.OrNoOp(opts.Logger),
		col:      col,
	}, nil
}

// Embed implements core.Embedder by delegating to the configured embedder.
func (x *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	return x.embedder.Embed(ctx, text)
}

// Ingest embeds and stores the given documents. Documents without an ID get
// one assigned.
func (x *Index) Ingest(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		if doc.Content == "" {
			return core.NewConfigError("rag.document", "document %q has no content", doc.Source)
		}
		embedding, err := x.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %q: %w", doc.Source, err)
		}

		id := doc.ID
		if id == "" {
			id = core.NewID()
		}
		metadata := map[string]string{"source": doc.Source}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}

		if err := x.col.AddDocument(ctx, chromem.Document{
			ID:        id,
			Content:   doc.Content,
			Embedding: embedding,
			Metadata:  metadata,
		}); err != nil {
			return core.NewCollaboratorError(core.CollaboratorIndexUnavailable, "add document", err)
		}
	}
	x.logger.Debug("documents ingested", "count", len(docs), "total", x.col.Count())
	return nil
}

// Search implements core.KnowledgeRetriever. Results come back ordered by
// similarity; topK is clamped to the collection size.
func (x *Index) Search(ctx context.Context, query string, topK int) ([]core.Chunk, error) {
	if topK <= 0 {
		topK = 5
	}
	if n := x.col.Count(); n == 0 {
		return nil, nil
	} else if topK > n {
		topK = n
	}

	embedding, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := x.col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, core.NewCollaboratorError(core.CollaboratorIndexUnavailable, "query index", err)
	}

	chunks := make([]core.Chunk, 0, len(results))
	for _, res := range results {
		metadata := make(map[string]string, len(res.Metadata))
		for k, v := range res.Metadata {
			if k != "source" {
				metadata[k] = v
			}
		}
		chunks = append(chunks, core.Chunk{
			Source:   res.Metadata["source"],
			Content:  res.Content,
			Score:    float64(res.Similarity),
			Metadata: metadata,
		})
	}
	x.logger.Debug("index searched", "results", len(chunks))
	return chunks, nil
}

// Count reports the number of indexed documents.
func (x *Index) Count() int {
	return x.col.Count()
}
