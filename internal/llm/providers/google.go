package providers

import (
	"context"

	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/zero-day-ai/threatviz/internal/llm"
)

// GoogleProvider implements llm.Provider for Google's Gemini models
type GoogleProvider struct {
	client *googleai.GoogleAI
	config llm.ProviderConfig
}

// NewGoogleProvider creates a new Gemini provider. The client is created
// without network access; the first request dials.
func NewGoogleProvider(ctx context.Context, cfg llm.ProviderConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, llm.NewProviderUnavailableError(llm.ProviderGemini, cfg.APIKeyEnv)
	}

	opts := []googleai.Option{
		googleai.WithAPIKey(cfg.APIKey),
	}

	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}

	client, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, llm.TranslateError("gemini", err)
	}

	return &GoogleProvider{
		client: client,
		config: cfg,
	}, nil
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return string(llm.ProviderGemini)
}

// Model returns the configured model
func (p *GoogleProvider) Model() string {
	return p.config.Model
}

// Complete sends a completion request
func (p *GoogleProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.client.GenerateContent(ctx, toSchemaMessages(req.Messages), buildCallOptions(req)...)
	if err != nil {
		return nil, llm.TranslateError(p.Name(), err)
	}

	return fromLangchainResponse(resp, req.Model), nil
}
