package observability

import (
	"context"
	"time"

	"github.com/zero-day-ai/threatviz/internal/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const defaultExportInterval = 30 * time.Second

// MeterProvider is a metric.MeterProvider that may need flushing on exit.
type MeterProvider interface {
	metric.MeterProvider
	Shutdown(ctx context.Context) error
}

type noopMeterProvider struct {
	noop.MeterProvider
}

func (noopMeterProvider) Shutdown(context.Context) error { return nil }

// InitMetrics returns a no-op provider when metrics are disabled. Otherwise
// it pushes to an OTLP collector over gRPC on a fixed interval and installs
// the provider globally.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (MeterProvider, error) {
	if !cfg.Enabled {
		return noopMeterProvider{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.WrapError(ErrInvalidConfig, "invalid metrics configuration", err)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, NewExporterConnectionError(cfg.Endpoint, err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	return provider, nil
}

// ShutdownMetrics flushes and stops provider.
func ShutdownMetrics(ctx context.Context, provider MeterProvider) error {
	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return NewShutdownTimeoutError("meter provider", err)
	}
	return nil
}
