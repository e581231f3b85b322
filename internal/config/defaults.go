package config

import (
	"path/filepath"

	"github.com/zero-day-ai/threatviz/internal/cve"
	"github.com/zero-day-ai/threatviz/internal/knowledge"
	"github.com/zero-day-ai/threatviz/internal/knowledge/embedder"
	"github.com/zero-day-ai/threatviz/internal/llm"
	"github.com/zero-day-ai/threatviz/internal/observability"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return DefaultConfigFor(DefaultHomeDir())
}

// DefaultConfigFor returns the defaults rooted at homeDir.
func DefaultConfigFor(homeDir string) *Config {
	chunk := knowledge.DefaultChunkOptions()
	corpus := knowledge.DefaultCorpusSpec()

	return &Config{
		LLM: LLMConfig{
			DefaultProvider: string(llm.DefaultProvider),
			Timeout:         llm.DefaultTimeout,
			MaxTokens:       llm.DefaultMaxTokens,
			Providers:       map[string]llm.ProviderConfig{},
		},
		Registry: RegistryConfig{
			BaseURL:   cve.DefaultBaseURL,
			UserAgent: cve.DefaultUserAgent,
			Timeout:   cve.DefaultTimeout,
		},
		Knowledge: KnowledgeConfig{
			IndexDir:     filepath.Join(homeDir, "index"),
			IndexName:    knowledge.DefaultIndexName,
			ChunkSize:    chunk.Size,
			ChunkOverlap: chunk.Overlap,
			TopK:         knowledge.DefaultTopK,
			PDFFiles:     corpus.PDFFiles,
			URLs:         corpus.URLs,
			Embedder:     embedder.DefaultConfig(),
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracing: observability.TracingConfig{
			Enabled:     false,
			ServiceName: "threatviz",
			SampleRate:  1.0,
		},
		Metrics: observability.MetricsConfig{
			Enabled: false,
		},
	}
}
