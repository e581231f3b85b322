package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/threatviz/internal/knowledge"
	"github.com/zero-day-ai/threatviz/internal/llm"
	"github.com/zero-day-ai/threatviz/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv(HomeEnv, "/opt/threatviz")
	cfg := DefaultConfig()

	assert.Equal(t, "groq", cfg.LLM.DefaultProvider)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)

	assert.Equal(t, "https://cveawg.mitre.org/api/cve", cfg.Registry.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Registry.Timeout)

	assert.Equal(t, filepath.Join("/opt/threatviz", "index"), cfg.Knowledge.IndexDir)
	assert.Equal(t, "threatviz", cfg.Knowledge.IndexName)
	assert.Equal(t, 800, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 100, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 5, cfg.Knowledge.TopK)
	assert.Equal(t, []string{"threat_models.pdf"}, cfg.Knowledge.PDFFiles)
	assert.Len(t, cfg.Knowledge.URLs, 8)
	assert.Equal(t, "ollama", cfg.Knowledge.Embedder.Provider)
	assert.Equal(t, "all-minilm", cfg.Knowledge.Embedder.Model)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Tracing.Enabled)
	assert.False(t, cfg.Metrics.Enabled)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestDefaultHomeDir(t *testing.T) {
	t.Setenv(HomeEnv, "/srv/tv")
	assert.Equal(t, "/srv/tv", DefaultHomeDir())
	assert.Equal(t, filepath.Join("/srv/tv", "config.yaml"), DefaultConfigPath(DefaultHomeDir()))

	t.Setenv(HomeEnv, "")
	assert.Contains(t, DefaultHomeDir(), ".threatviz")
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: claude
  timeout: 45s
  providers:
    groq:
      model: llama-3.3-70b-versatile
    anthropic:
      api_key_env: MY_CLAUDE_KEY

registry:
  base_url: http://localhost:8080/api/cve
  requests_per_second: 2.5

knowledge:
  chunk_size: 400
  chunk_overlap: 50
  top_k: 3
  urls:
    - https://mermaid.js.org/syntax/flowchart.html
  json_sources:
    - location: ./attack.json
      selector: $.objects[*]
  embedder:
    provider: hash
    dimensions: 256

logging:
  level: debug
  format: json
`)

	loader := NewConfigLoader(NewValidator(), "/home/test/.threatviz")
	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.LLM.DefaultProvider)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens, "absent keys keep defaults")
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Providers["groq"].Model)

	providers := cfg.LLM.ProviderConfigs()
	assert.Equal(t, "MY_CLAUDE_KEY", providers[llm.ProviderAnthropic].APIKeyEnv)
	assert.Equal(t, "llama-3.3-70b-versatile", providers[llm.ProviderGroq].Model)

	assert.Equal(t, "http://localhost:8080/api/cve", cfg.Registry.BaseURL)
	assert.Equal(t, 2.5, cfg.Registry.RequestsPerSecond)
	assert.Equal(t, 10*time.Second, cfg.Registry.Timeout)

	assert.Equal(t, "/home/test/.threatviz/index", cfg.Knowledge.IndexDir)
	assert.Equal(t, 400, cfg.Knowledge.ChunkOptions().Size)
	assert.Equal(t, 50, cfg.Knowledge.ChunkOptions().Overlap)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.Equal(t, []string{"https://mermaid.js.org/syntax/flowchart.html"}, cfg.Knowledge.URLs, "lists replace defaults")
	assert.Equal(t, []string{"threat_models.pdf"}, cfg.Knowledge.PDFFiles)
	require.Len(t, cfg.Knowledge.JSONSources, 1)
	assert.Equal(t, "./attack.json", cfg.Knowledge.JSONSources[0].Location)
	assert.Equal(t, "$.objects[*]", cfg.Knowledge.JSONSources[0].Selector)
	assert.Equal(t, "hash", cfg.Knowledge.Embedder.Provider)
	assert.Equal(t, 256, cfg.Knowledge.Embedder.Dimensions)

	sources := cfg.Knowledge.Corpus().Sources()
	require.Len(t, sources, 3)
	assert.Equal(t, "json", string(sources[2].Kind))

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadWithEnvironmentVariableInterpolation(t *testing.T) {
	t.Setenv("TV_PROVIDER", "openai")
	t.Setenv("TV_INDEX", "/custom/index")
	t.Setenv("TV_OPENAI_KEY", "sk-from-env")
	t.Setenv("TV_UNSET", "")

	path := writeConfig(t, `
llm:
  default_provider: ${TV_PROVIDER}
  providers:
    openai:
      api_key: ${TV_OPENAI_KEY}
    groq:
      api_key: ${TV_UNSET}
knowledge:
  index_dir: ${TV_INDEX}/v1
`)

	cfg, err := NewConfigLoader(NewValidator(), t.TempDir()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	assert.Equal(t, "sk-from-env", cfg.LLM.Providers["openai"].APIKey)
	assert.Empty(t, cfg.LLM.Providers["groq"].APIKey, "unset variables expand to nothing")
	assert.Equal(t, "/custom/index/v1", cfg.Knowledge.IndexDir)
}

func TestLoadWithDefaults(t *testing.T) {
	home := t.TempDir()
	loader := NewConfigLoader(NewValidator(), home)

	cfg, err := loader.LoadWithDefaults(filepath.Join(home, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "index"), cfg.Knowledge.IndexDir)

	path := writeConfig(t, "logging:\n  level: warn\n")
	cfg, err = loader.LoadWithDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	loader := NewConfigLoader(NewValidator(), t.TempDir())

	_, err := loader.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))

	_, err = loader.Load(writeConfig(t, "llm: [unclosed"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{"unsupported default provider", func(c *Config) { c.LLM.DefaultProvider = "mistral" }, "llm.default_provider must be one of"},
		{"empty default provider", func(c *Config) { c.LLM.DefaultProvider = "" }, "llm.default_provider is required"},
		{"unknown provider entry", func(c *Config) { c.LLM.Providers["cohere"] = llm.ProviderConfig{} }, "llm.providers.cohere"},
		{"bad provider base url", func(c *Config) {
			c.LLM.Providers["groq"] = llm.ProviderConfig{BaseURL: "not a url"}
		}, "base_url must be a valid URL"},
		{"short timeout", func(c *Config) { c.LLM.Timeout = time.Millisecond }, "llm.timeout must be at least"},
		{"bad registry url", func(c *Config) { c.Registry.BaseURL = "::" }, "registry.base_url must be a valid URL"},
		{"overlap not below size", func(c *Config) { c.Knowledge.ChunkOverlap = c.Knowledge.ChunkSize }, "knowledge.chunk_overlap must be less than"},
		{"zero top k", func(c *Config) { c.Knowledge.TopK = 0 }, "knowledge.top_k must be at least 1"},
		{"bad corpus url", func(c *Config) { c.Knowledge.URLs = []string{"nope"} }, "knowledge.urls"},
		{"json source without location", func(c *Config) {
			c.Knowledge.JSONSources = []knowledge.Source{{Selector: "$"}}
		}, "knowledge.json_sources[0].location is required"},
		{"unknown embedder", func(c *Config) { c.Knowledge.Embedder.Provider = "bert" }, "knowledge.embedder.provider must be one of"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level must be one of"},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }, "tracing: endpoint is required"},
		{"sample rate out of range", func(c *Config) { c.Tracing.SampleRate = 2 }, "tracing.sample_rate must be at most 1"},
		{"metrics without endpoint", func(c *Config) { c.Metrics.Enabled = true }, "metrics: endpoint is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfigFor(t.TempDir())
			tt.mutate(cfg)

			err := NewValidator().Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.NewError(types.CONFIG_VALIDATION_FAILED, "")))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, NewValidator().Validate(nil))
}

func TestWriteThenLoad(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "nested", "config.yaml")

	cfg := DefaultConfigFor(home)
	cfg.LLM.DefaultProvider = "gemini"
	cfg.Knowledge.TopK = 7
	require.NoError(t, Write(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := NewConfigLoader(NewValidator(), home).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", loaded.LLM.DefaultProvider)
	assert.Equal(t, 7, loaded.Knowledge.TopK)
	assert.Equal(t, cfg.LLM.Timeout, loaded.LLM.Timeout)
	assert.Equal(t, cfg.Knowledge.URLs, loaded.Knowledge.URLs)
}

func TestFormatFieldPath(t *testing.T) {
	tests := map[string]string{
		"Config.LLM.DefaultProvider":         "llm.default_provider",
		"Config.Knowledge.URLs[0]":           "knowledge.urls[0]",
		"Config.Knowledge.PDFFiles":          "knowledge.pdf_files",
		"Config.Knowledge.JSONSources":       "knowledge.json_sources",
		"Config.Registry.BaseURL":            "registry.base_url",
		"Config.Registry.RequestsPerSecond":  "registry.requests_per_second",
		"Config.LLM.Providers[groq].BaseURL": "llm.providers[groq].base_url",
		"Config":                             "Config",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatFieldPath(in), in)
	}
}
