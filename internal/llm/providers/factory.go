package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/zero-day-ai/threatviz/internal/llm"
	"go.opentelemetry.io/otel/trace"
)

// NewProvider creates a provider from a resolved configuration.
func NewProvider(ctx context.Context, cfg llm.ProviderConfig) (llm.Provider, error) {
	switch cfg.Type {
	case llm.ProviderGroq, llm.ProviderOpenAI:
		return NewOpenAIProvider(cfg)

	case llm.ProviderAnthropic:
		return NewAnthropicProvider(cfg)

	case llm.ProviderGemini:
		return NewGoogleProvider(ctx, cfg)

	default:
		return nil, llm.NewUnsupportedProviderError(string(cfg.Type))
	}
}

// ResolverConfig wires a Resolver.
type ResolverConfig struct {
	// Providers holds per-provider overrides keyed by canonical name.
	Providers map[llm.ProviderType]llm.ProviderConfig

	// Timeout bounds each completion call.
	Timeout time.Duration

	// MaxTokens caps each completion. Zero selects llm.DefaultMaxTokens.
	MaxTokens int

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Resolver turns a provider name into a ready Gateway. Credentials are read
// when a provider is resolved, not when the Resolver is built.
type Resolver struct {
	cfg ResolverConfig
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns a Gateway for name. Unknown names fail with
// UNSUPPORTED_PROVIDER; missing credentials with PROVIDER_UNAVAILABLE.
func (r *Resolver) Resolve(ctx context.Context, name string) (llm.Completer, error) {
	p, err := llm.ParseProvider(name)
	if err != nil {
		return nil, err
	}

	cfg, err := r.cfg.Providers[p].Resolve(p)
	if err != nil {
		return nil, err
	}

	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return llm.NewGateway(provider, llm.GatewayOptions{
		Model:     cfg.Model,
		Timeout:   r.cfg.Timeout,
		MaxTokens: r.cfg.MaxTokens,
		Logger:    r.cfg.Logger,
		Tracer:    r.cfg.Tracer,
	}), nil
}
