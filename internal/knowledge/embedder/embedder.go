package embedder

import (
	"context"

	"github.com/zero-day-ai/threatviz/internal/types"
)

// Embedder generates fixed-dimension embedding vectors from text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length, or 0 if not yet known.
	Dimensions() int

	// Model returns the name of the embedding model being used.
	Model() string

	// Health returns the health status of the embedder.
	Health(ctx context.Context) types.HealthStatus
}

// Config holds configuration for embedding providers.
type Config struct {
	// Provider selects the implementation: "ollama", "openai" or "hash".
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider" validate:"required,oneof=ollama openai hash"`

	// Model is the embedding model name, e.g. "all-minilm" for ollama.
	Model string `yaml:"model" json:"model" mapstructure:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`

	// APIKey is used by the openai provider; OPENAI_API_KEY is consulted when empty.
	APIKey string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`

	// Dimensions pins the expected vector length. Zero learns it from the first response.
	Dimensions int `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions" validate:"gte=0"`

	// BatchSize caps the number of texts sent per request.
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size" validate:"gte=0"`
}

// DefaultConfig embeds with all-MiniLM-L6-v2 served by a local ollama.
func DefaultConfig() Config {
	return Config{
		Provider:   string(TypeOllama),
		Model:      "all-minilm",
		BaseURL:    "http://localhost:11434",
		Dimensions: 384,
		BatchSize:  64,
	}
}
