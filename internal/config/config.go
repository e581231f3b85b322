package config

import (
	"time"

	"github.com/zero-day-ai/threatviz/internal/knowledge"
	"github.com/zero-day-ai/threatviz/internal/knowledge/embedder"
	"github.com/zero-day-ai/threatviz/internal/llm"
	"github.com/zero-day-ai/threatviz/internal/observability"
)

// Config is the root configuration for threatviz.
type Config struct {
	LLM       LLMConfig                   `mapstructure:"llm" yaml:"llm"`
	Registry  RegistryConfig              `mapstructure:"registry" yaml:"registry"`
	Knowledge KnowledgeConfig             `mapstructure:"knowledge" yaml:"knowledge"`
	Output    OutputConfig                `mapstructure:"output" yaml:"output"`
	Logging   observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing   observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics   observability.MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LLMConfig selects and tunes the language-model gateway. Providers is keyed
// by provider name; entries override the built-in model, endpoint and key
// variable.
type LLMConfig struct {
	DefaultProvider string                        `mapstructure:"default_provider" yaml:"default_provider" validate:"required"`
	Timeout         time.Duration                 `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	MaxTokens       int                           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Providers       map[string]llm.ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty" validate:"dive"`
}

// RegistryConfig points at the CVE record registry.
type RegistryConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
}

// KnowledgeConfig describes the retrieval index and the corpus it is built from.
type KnowledgeConfig struct {
	IndexDir     string             `mapstructure:"index_dir" yaml:"index_dir" validate:"required"`
	IndexName    string             `mapstructure:"index_name" yaml:"index_name" validate:"required"`
	ChunkSize    int                `mapstructure:"chunk_size" yaml:"chunk_size" validate:"min=1"`
	ChunkOverlap int                `mapstructure:"chunk_overlap" yaml:"chunk_overlap" validate:"min=0"`
	TopK         int                `mapstructure:"top_k" yaml:"top_k" validate:"min=1,max=100"`
	PDFFiles     []string           `mapstructure:"pdf_files" yaml:"pdf_files"`
	URLs         []string           `mapstructure:"urls" yaml:"urls" validate:"dive,url"`
	Files        []string           `mapstructure:"files" yaml:"files,omitempty"`
	JSONSources  []knowledge.Source `mapstructure:"json_sources" yaml:"json_sources,omitempty"`
	Embedder     embedder.Config    `mapstructure:"embedder" yaml:"embedder"`
}

// ChunkOptions returns the configured sliding window.
func (k KnowledgeConfig) ChunkOptions() knowledge.ChunkOptions {
	return knowledge.ChunkOptions{Size: k.ChunkSize, Overlap: k.ChunkOverlap}
}

// Corpus returns the configured reference inputs.
func (k KnowledgeConfig) Corpus() knowledge.CorpusSpec {
	return knowledge.CorpusSpec{
		PDFFiles:    k.PDFFiles,
		URLs:        k.URLs,
		Files:       k.Files,
		JSONSources: k.JSONSources,
	}
}

// OutputConfig controls where reports are written.
type OutputConfig struct {
	// Dir receives <CVE-ID>.json files. Defaults to the working directory.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ProviderConfigs converts the provider map to the form the resolver takes.
// Keys that do not name a supported provider are skipped; Validate reports
// them.
func (c LLMConfig) ProviderConfigs() map[llm.ProviderType]llm.ProviderConfig {
	out := make(map[llm.ProviderType]llm.ProviderConfig, len(c.Providers))
	for name, pc := range c.Providers {
		p, err := llm.ParseProvider(name)
		if err != nil {
			continue
		}
		out[p] = pc
	}
	return out
}
