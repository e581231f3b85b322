package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/zero-day-ai/threatviz/internal/types"
)

// DefaultHashDimensions matches all-MiniLM-L6-v2 so indexes stay comparable in size.
const DefaultHashDimensions = 384

// HashEmbedder maps text to a signed bag-of-words vector using the hashing
// trick, then L2-normalizes it. Texts sharing vocabulary land close together,
// which is enough for offline use and deterministic tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a HashEmbedder with the given vector length.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed vector for text.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, newEmbeddingError(h.Model(), err)
	}
	return h.vector(text), nil
}

// EmbedBatch embeds texts in input order.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the vector length.
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

// Model returns the embedder name.
func (h *HashEmbedder) Model() string {
	return "hash-bow"
}

// Health is always healthy.
func (h *HashEmbedder) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("hash embedder")
}

func (h *HashEmbedder) vector(text string) []float32 {
	acc := make([]float64, h.dimensions)
	for _, token := range tokenize(text) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(token))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.dimensions))
		if sum&(1<<63) != 0 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, h.dimensions)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
