package providers

import (
	"context"

	"github.com/tmc/langchaingo/llms/openai"
	"github.com/zero-day-ai/threatviz/internal/llm"
)

// OpenAIProvider implements llm.Provider for OpenAI and for OpenAI-compatible
// endpoints such as groq.
type OpenAIProvider struct {
	client *openai.LLM
	config llm.ProviderConfig
}

// NewOpenAIProvider creates a provider from a resolved configuration.
func NewOpenAIProvider(cfg llm.ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, llm.NewProviderUnavailableError(cfg.Type, cfg.APIKeyEnv)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
	}

	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, llm.TranslateError(string(cfg.Type), err)
	}

	return &OpenAIProvider{
		client: client,
		config: cfg,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return string(p.config.Type)
}

// Model returns the configured model
func (p *OpenAIProvider) Model() string {
	return p.config.Model
}

// Complete sends a completion request
func (p *OpenAIProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.GenerateContent(ctx, toSchemaMessages(req.Messages), buildCallOptions(req)...)
	if err != nil {
		return nil, llm.TranslateError(p.Name(), err)
	}

	return fromLangchainResponse(resp, req.Model), nil
}
