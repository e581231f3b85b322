package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/zero-day-ai/threatviz/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// GatewayOptions tunes a Gateway. Zero values select defaults.
type GatewayOptions struct {
	// Model overrides the provider's default model.
	Model string

	// Timeout bounds each Complete call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxTokens defaults to DefaultMaxTokens.
	MaxTokens int

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Gateway turns a Provider into a stateless prompt-to-text capability with
// deterministic decoding. Each call is independent.
type Gateway struct {
	provider  Provider
	model     string
	timeout   time.Duration
	maxTokens int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewGateway wraps provider.
func NewGateway(provider Provider, opts GatewayOptions) *Gateway {
	model := opts.Model
	if model == "" {
		model = provider.Model()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("threatviz/llm")
	}

	return &Gateway{
		provider:  provider,
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
		logger:    logger.With("component", "llm-gateway", "llm.provider", provider.Name()),
		tracer:    tracer,
	}
}

// Provider returns the wrapped provider's name.
func (g *Gateway) Provider() string {
	return g.provider.Name()
}

// Model returns the model sent with every request.
func (g *Gateway) Model() string {
	return g.model
}

// Complete sends prompt as a single user message at temperature 0 and returns
// the raw response text. An empty response is an UPSTREAM_ERROR.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := g.tracer.Start(ctx, "threatviz.llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", g.provider.Name()),
			attribute.String("llm.model", g.model),
			attribute.Int("llm.prompt_chars", len(prompt)),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := CompletionRequest{
		Model:       g.model,
		Messages:    []Message{NewUserMessage(prompt)},
		Temperature: 0,
		MaxTokens:   g.maxTokens,
	}
	if err := req.Validate(); err != nil {
		err = types.WrapError(types.UPSTREAM_ERROR, "invalid completion request", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	if err != nil {
		err = TranslateError(g.provider.Name(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.ErrorContext(ctx, "completion failed",
			"llm.model", g.model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return "", err
	}

	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		err := NewUpstreamError(g.provider.Name(), "provider returned an empty completion", nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.Int("llm.response_chars", len(resp.Content)),
		attribute.String("llm.finish_reason", resp.FinishReason.String()),
		attribute.Int("llm.usage.total_tokens", resp.Usage.TotalTokens),
	)
	g.logger.DebugContext(ctx, "completion finished",
		"llm.model", g.model,
		"finish_reason", resp.FinishReason,
		"response_chars", len(resp.Content),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.Content, nil
}
