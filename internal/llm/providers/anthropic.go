package providers

import (
	"context"

	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/zero-day-ai/threatviz/internal/llm"
)

// AnthropicProvider implements llm.Provider for Anthropic's Claude models
type AnthropicProvider struct {
	client *anthropic.LLM
	config llm.ProviderConfig
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(cfg llm.ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, llm.NewProviderUnavailableError(llm.ProviderAnthropic, cfg.APIKeyEnv)
	}

	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
	}

	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, llm.TranslateError("anthropic", err)
	}

	return &AnthropicProvider{
		client: client,
		config: cfg,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return string(llm.ProviderAnthropic)
}

// Model returns the configured model
func (p *AnthropicProvider) Model() string {
	return p.config.Model
}

// Complete sends a completion request
func (p *AnthropicProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.GenerateContent(ctx, toSchemaMessages(req.Messages), buildCallOptions(req)...)
	if err != nil {
		return nil, llm.TranslateError(p.Name(), err)
	}

	return fromLangchainResponse(resp, req.Model), nil
}
