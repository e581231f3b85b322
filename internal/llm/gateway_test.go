package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/threatviz/internal/types"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeProvider struct {
	content string
	err     error
	delay   time.Duration
	last    CompletionRequest
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-default" }

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &CompletionResponse{Content: f.content, FinishReason: FinishReasonStop}, nil
}

func TestGateway_Complete(t *testing.T) {
	p := &fakeProvider{content: "flowchart TD"}
	gw := NewGateway(p, GatewayOptions{})

	out, err := gw.Complete(context.Background(), "draw it")
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD", out)

	assert.Equal(t, "fake-default", p.last.Model)
	assert.Equal(t, 0.0, p.last.Temperature)
	assert.Equal(t, DefaultMaxTokens, p.last.MaxTokens)
	require.Len(t, p.last.Messages, 1)
	assert.Equal(t, RoleUser, p.last.Messages[0].Role)
	assert.Equal(t, "draw it", p.last.Messages[0].Content)
}

func TestGateway_ModelOverride(t *testing.T) {
	p := &fakeProvider{content: "x"}
	gw := NewGateway(p, GatewayOptions{Model: "override"})

	_, err := gw.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "override", p.last.Model)
	assert.Equal(t, "override", gw.Model())
	assert.Equal(t, "fake", gw.Provider())
}

func TestGateway_Errors(t *testing.T) {
	tests := []struct {
		name      string
		provider  *fakeProvider
		timeout   time.Duration
		prompt    string
		retryable bool
	}{
		{name: "provider failure", provider: &fakeProvider{err: errors.New("500 internal server error")}, prompt: "p"},
		{name: "rate limited", provider: &fakeProvider{err: errors.New("429 Too Many Requests")}, prompt: "p", retryable: true},
		{name: "empty completion", provider: &fakeProvider{content: "  \n"}, prompt: "p"},
		{name: "empty prompt", provider: &fakeProvider{content: "x"}, prompt: ""},
		{name: "timeout", provider: &fakeProvider{content: "x", delay: time.Second}, timeout: 10 * time.Millisecond, prompt: "p", retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewGateway(tt.provider, GatewayOptions{Timeout: tt.timeout})
			_, err := gw.Complete(context.Background(), tt.prompt)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUpstream)
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
		})
	}
}

func TestGateway_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	gw := NewGateway(&fakeProvider{err: errors.New("boom")}, GatewayOptions{Tracer: tp.Tracer("test")})
	_, err := gw.Complete(context.Background(), "p")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "threatviz.llm.complete", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
