package embedder

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/zero-day-ai/threatviz/internal/types"
)

// Type names an embedder implementation.
type Type string

const (
	// TypeOllama embeds through a local ollama server. The default model,
	// all-minilm, is all-MiniLM-L6-v2 and produces 384-dimensional vectors.
	TypeOllama Type = "ollama"

	// TypeOpenAI embeds through any OpenAI-compatible /embeddings endpoint.
	TypeOpenAI Type = "openai"

	// TypeHash is a deterministic offline embedder based on feature hashing.
	TypeHash Type = "hash"
)

// New creates an embedder from configuration.
func New(cfg Config) (Embedder, error) {
	switch Type(cfg.Provider) {
	case TypeOllama:
		model := orDefault(cfg.Model, "all-minilm")
		opts := []ollama.Option{ollama.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, types.WrapError(ErrCodeInvalidConfig, "failed to create ollama client", err)
		}
		return newLangchain(client, model, cfg)

	case TypeOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, types.NewError(ErrCodeInvalidConfig,
				"openai embedder requires api_key (or OPENAI_API_KEY environment variable)")
		}
		model := orDefault(cfg.Model, "text-embedding-3-small")
		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithEmbeddingModel(model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, types.WrapError(ErrCodeInvalidConfig, "failed to create openai client", err)
		}
		return newLangchain(client, model, cfg)

	case TypeHash:
		dims := cfg.Dimensions
		if dims == 0 {
			dims = DefaultHashDimensions
		}
		return NewHashEmbedder(dims), nil

	default:
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("unknown embedder provider %q - must be 'ollama', 'openai' or 'hash'", cfg.Provider))
	}
}

func newLangchain(client embeddings.EmbedderClient, model string, cfg Config) (Embedder, error) {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	inner, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batch))
	if err != nil {
		return nil, types.WrapError(ErrCodeInvalidConfig, "failed to create embedder", err)
	}
	return NewLangchainEmbedder(inner, model, cfg.Dimensions), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
