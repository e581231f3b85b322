package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/zero-day-ai/threatviz/internal/types"
)

// ProviderType represents the type of LLM provider.
type ProviderType string

const (
	ProviderGroq      ProviderType = "groq"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGemini    ProviderType = "gemini"
)

// DefaultProvider is used when neither flags nor configuration pick one.
const DefaultProvider = ProviderGroq

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 120 * time.Second

// DefaultMaxTokens is sent with every request; the anthropic API requires it.
const DefaultMaxTokens = 4096

var providerAliases = map[string]ProviderType{
	"groq":      ProviderGroq,
	"openai":    ProviderOpenAI,
	"anthropic": ProviderAnthropic,
	"claude":    ProviderAnthropic,
	"gemini":    ProviderGemini,
	"google":    ProviderGemini,
}

// ParseProvider resolves a provider name or alias, case-insensitively.
func ParseProvider(name string) (ProviderType, error) {
	p, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", NewUnsupportedProviderError(name)
	}
	return p, nil
}

// SupportedProviders lists accepted provider names and aliases, sorted.
func SupportedProviders() []string {
	names := make([]string, 0, len(providerAliases))
	for name := range providerAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderConfig contains configuration for a specific LLM provider.
// APIKey wins over APIKeyEnv; both may be empty until Resolve fills defaults.
type ProviderConfig struct {
	Type      ProviderType `mapstructure:"type" yaml:"type" validate:"omitempty,oneof=groq openai anthropic gemini"`
	APIKey    string       `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APIKeyEnv string       `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	BaseURL   string       `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model     string       `mapstructure:"model" yaml:"model,omitempty"`
}

// DefaultProviderConfig returns the built-in model, endpoint and key variable
// for p.
func DefaultProviderConfig(p ProviderType) ProviderConfig {
	switch p {
	case ProviderGroq:
		return ProviderConfig{
			Type:      ProviderGroq,
			APIKeyEnv: "GROQ_API_KEY",
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "moonshotai/kimi-k2-instruct-0905",
		}
	case ProviderOpenAI:
		return ProviderConfig{Type: ProviderOpenAI, APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o-mini"}
	case ProviderAnthropic:
		return ProviderConfig{Type: ProviderAnthropic, APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-haiku-4-5"}
	case ProviderGemini:
		return ProviderConfig{Type: ProviderGemini, APIKeyEnv: "GOOGLE_API_KEY", Model: "gemini-1.5-pro"}
	default:
		return ProviderConfig{Type: p}
	}
}

// Resolve fills empty fields from the provider defaults and reads the API key
// from the environment when it is not set inline. It returns
// PROVIDER_UNAVAILABLE when no key can be found.
func (c ProviderConfig) Resolve(p ProviderType) (ProviderConfig, error) {
	def := DefaultProviderConfig(p)
	out := c
	out.Type = p
	if out.APIKeyEnv == "" {
		out.APIKeyEnv = def.APIKeyEnv
	}
	if out.BaseURL == "" {
		out.BaseURL = def.BaseURL
	}
	if out.Model == "" {
		out.Model = def.Model
	}
	if out.APIKey == "" && out.APIKeyEnv != "" {
		out.APIKey = os.Getenv(out.APIKeyEnv)
	}
	if out.APIKey == "" {
		return out, NewProviderUnavailableError(p, out.APIKeyEnv)
	}
	return out, nil
}

// Validate performs validation on the ProviderConfig.
func (c ProviderConfig) Validate() error {
	if c.Type == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "provider type cannot be empty")
	}
	if _, err := ParseProvider(string(c.Type)); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid provider type '%s'", c.Type), err)
	}
	if c.Model == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "model cannot be empty")
	}
	return nil
}
