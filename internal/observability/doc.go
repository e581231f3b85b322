// Package observability sets up structured logging, tracing and metrics.
//
// Logging uses log/slog with JSON or text handlers. Records at info and above
// have sensitive attributes (api keys, tokens, prompts) redacted, and
// WithTrace correlates a logger with the active span.
//
// Tracing and metrics use the OpenTelemetry SDK and export over OTLP gRPC
// when enabled:
//
//	tp, err := observability.InitTracing(ctx, cfg.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer observability.ShutdownTracing(ctx, tp)
//
// When disabled, tracing yields a provider without exporters and metrics a
// no-op provider, so instrumented code never branches on configuration.
package observability
