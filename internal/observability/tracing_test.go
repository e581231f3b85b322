package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/threatviz/internal/types"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.NoError(t, ShutdownTracing(context.Background(), tp))
}

func TestInitTracing_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	cfg := TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		ServiceName: "threatviz-test",
		SampleRate:  1.0,
		Insecure:    true,
	}

	tp, err := InitTracing(context.Background(), cfg,
		WithSpanExporter(exporter),
		WithBatchTimeout(10*time.Millisecond),
	)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "threatviz.pipeline.run")
	span.End()
	// The in-memory exporter drops its spans on shutdown, so flush instead.
	require.NoError(t, tp.ForceFlush(context.Background()))
	t.Cleanup(func() { _ = ShutdownTracing(context.Background(), tp) })

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "threatviz.pipeline.run", spans[0].Name)

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "threatviz-test", service)
}

func TestInitTracing_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  TracingConfig
	}{
		{"missing endpoint", TracingConfig{Enabled: true, SampleRate: 1}},
		{"sample rate too high", TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRate: 1.5}},
		{"negative sample rate", TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRate: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitTracing(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Equal(t, ErrInvalidConfig, types.CodeOf(err))
		})
	}
}

func TestInitTracing_MissingTLSCert(t *testing.T) {
	cfg := TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		SampleRate:  1,
		TLSCertFile: "/nonexistent/ca.pem",
	}
	_, err := InitTracing(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS credentials")
}

func TestShutdownTracing_Nil(t *testing.T) {
	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}
