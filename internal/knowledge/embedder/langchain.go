package embedder

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/zero-day-ai/threatviz/internal/types"
)

// LangchainEmbedder adapts a langchaingo embeddings.Embedder and enforces a
// fixed vector dimension across calls.
type LangchainEmbedder struct {
	inner embeddings.Embedder
	model string

	mu         sync.RWMutex
	dimensions int
}

// NewLangchainEmbedder wraps inner. A dimensions of 0 is learned from the
// first successful response and enforced afterwards.
func NewLangchainEmbedder(inner embeddings.Embedder, model string, dimensions int) *LangchainEmbedder {
	return &LangchainEmbedder{
		inner:      inner,
		model:      model,
		dimensions: dimensions,
	}
}

// Embed generates an embedding for a single text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, newEmbeddingError(e.model, err)
	}
	if err := e.checkDimensions(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch generates embeddings for texts in input order.
func (e *LangchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, newEmbeddingError(e.model, err)
	}
	if len(vecs) != len(texts) {
		return nil, types.NewError(types.EMBEDDING_FAILED, "embedding count does not match input count")
	}
	for _, vec := range vecs {
		if err := e.checkDimensions(vec); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

// Dimensions returns the enforced vector length, 0 until known.
func (e *LangchainEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Model returns the embedding model name.
func (e *LangchainEmbedder) Model() string {
	return e.model
}

// Health embeds a probe string.
func (e *LangchainEmbedder) Health(ctx context.Context) types.HealthStatus {
	if _, err := e.Embed(ctx, "health check"); err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy(e.model + " reachable")
}

func (e *LangchainEmbedder) checkDimensions(vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(vec) == 0 {
		return types.NewError(types.EMBEDDING_FAILED, "embedding with "+e.model+" returned an empty vector")
	}
	if e.dimensions == 0 {
		e.dimensions = len(vec)
		return nil
	}
	if len(vec) != e.dimensions {
		return newDimensionError(e.model, e.dimensions, len(vec))
	}
	return nil
}
