package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/threatviz/internal/types"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderType
	}{
		{"groq", ProviderGroq},
		{"OpenAI", ProviderOpenAI},
		{"claude", ProviderAnthropic},
		{"anthropic", ProviderAnthropic},
		{" gemini ", ProviderGemini},
		{"google", ProviderGemini},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseProvider("cohere")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
	assert.Contains(t, err.Error(), "groq")
}

func TestProviderConfig_Resolve(t *testing.T) {
	t.Run("defaults and env key", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "gsk-test")
		cfg, err := ProviderConfig{}.Resolve(ProviderGroq)
		require.NoError(t, err)
		assert.Equal(t, "gsk-test", cfg.APIKey)
		assert.Equal(t, "moonshotai/kimi-k2-instruct-0905", cfg.Model)
		assert.Equal(t, "https://api.groq.com/openai/v1", cfg.BaseURL)
		assert.Equal(t, ProviderGroq, cfg.Type)
	})

	t.Run("inline key and model win", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "from-env")
		cfg, err := ProviderConfig{APIKey: "inline", Model: "gpt-4o"}.Resolve(ProviderOpenAI)
		require.NoError(t, err)
		assert.Equal(t, "inline", cfg.APIKey)
		assert.Equal(t, "gpt-4o", cfg.Model)
	})

	t.Run("custom env var", func(t *testing.T) {
		t.Setenv("MY_GEMINI_KEY", "g-key")
		cfg, err := ProviderConfig{APIKeyEnv: "MY_GEMINI_KEY"}.Resolve(ProviderGemini)
		require.NoError(t, err)
		assert.Equal(t, "g-key", cfg.APIKey)
		assert.Equal(t, "gemini-1.5-pro", cfg.Model)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		_, err := ProviderConfig{}.Resolve(ProviderAnthropic)
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	})
}

func TestProviderConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultProviderConfig(ProviderOpenAI).Validate())
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(ProviderConfig{}.Validate()))
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(ProviderConfig{Type: "x", Model: "m"}.Validate()))
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(ProviderConfig{Type: ProviderGroq}.Validate()))
}
