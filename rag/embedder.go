package rag

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"

	"github.com/dgraph-io/ristretto"
	"github.com/openai/openai-go"

	"github.com/hupe1980/councilmesh/core"
)

// OpenAIEmbedderOptions configure the OpenAI embedder adapter.
type OpenAIEmbedderOptions struct {
	Model openai.EmbeddingModel
}

// OpenAIEmbedder implements core.Embedder on top of the OpenAI Embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	opts   OpenAIEmbedderOptions
}

var _ core.Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder using the default client (API key
// from env).
func NewOpenAIEmbedder(optFns ...func(o *OpenAIEmbedderOptions)) *OpenAIEmbedder {
	client := openai.NewClient()
	return NewOpenAIEmbedderFromClient(&client, optFns...)
}

// NewOpenAIEmbedderFromClient creates an embedder from an existing client.
func NewOpenAIEmbedderFromClient(client *openai.Client, optFns ...func(o *OpenAIEmbedderOptions)) *OpenAIEmbedder {
	opts := OpenAIEmbedderOptions{
		Model: openai.EmbeddingModelTextEmbedding3Small,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OpenAIEmbedder{client: client, opts: opts}
}

// Embed implements core.Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: e.opts.Model,
	})
	if err != nil {
		return nil, classifyEmbed(err)
	}
	if len(resp.Data) == 0 {
		return nil, core.NewCollaboratorError(core.CollaboratorInvalidResponse, "openai embedding",
			fmt.Errorf("empty embedding for model %s", e.opts.Model))
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func classifyEmbed(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return core.NewCollaboratorError(core.CollaboratorRateLimited, "openai embedding", err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return core.NewCollaboratorError(core.CollaboratorAuthFailure, "openai embedding", err)
		}
	}
	return core.NewCollaboratorError(core.CollaboratorTimeout, "openai embedding", err)
}

// CachedEmbedder wraps an embedder with a ristretto cache keyed by the exact
// input text. Deliberations embed the same query once per participant stream,
// so the hit rate is high within a single run.
type CachedEmbedder struct {
	inner core.Embedder
	cache *ristretto.Cache
}

var _ core.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an in-process embedding cache.
func NewCachedEmbedder(inner core.Embedder) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     64 << 20, // 64 MiB of float32 vectors
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed implements core.Embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Wait blocks until pending cache writes are applied. Only needed by tests.
func (e *CachedEmbedder) Wait() {
	e.cache.Wait()
}

// MockEmbedder generates deterministic unit vectors from a text hash. Equal
// texts embed identically, which is enough structure for offline runs and
// tests that exercise retrieval plumbing rather than semantic quality.
type MockEmbedder struct {
	dimensions int
}

var _ core.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a deterministic embedder with the given dimension
// count (384 when d <= 0).
func NewMockEmbedder(d int) *MockEmbedder {
	if d <= 0 {
		d = 384
	}
	return &MockEmbedder{dimensions: d}
}

// Embed implements core.Embedder.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	vec := make([]float32, m.dimensions)
	seed := h.Sum64()
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int { return m.dimensions }

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
