// Package pipeline runs the fixed five-stage CVE analysis: fetch, analyze,
// model, critique and report. Stages run strictly in order over a single
// State; the first failure ends the run.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zero-day-ai/threatviz/internal/cve"
	"github.com/zero-day-ai/threatviz/internal/knowledge"
	"github.com/zero-day-ai/threatviz/internal/llm"
	"github.com/zero-day-ai/threatviz/internal/observability"
	"github.com/zero-day-ai/threatviz/internal/report"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Fetcher retrieves a raw registry record by normalized identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*cve.Record, error)
}

// Retriever returns the k nearest reference chunks for query, joined.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (string, error)
}

// GatewayResolver maps a provider name to a completion capability.
type GatewayResolver interface {
	Resolve(ctx context.Context, provider string) (llm.Completer, error)
}

// Pipeline wires the stage dependencies. It holds no per-run state, so one
// Pipeline may serve concurrent runs.
type Pipeline struct {
	fetcher   Fetcher
	retriever Retriever
	resolver  GatewayResolver
	topK      int
	logger    *slog.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	duration  metric.Float64Histogram
}

// Option is a functional option for configuring the Pipeline.
type Option func(*Pipeline)

// WithTopK sets the number of reference chunks retrieved per query.
// Default: knowledge.DefaultTopK
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithLogger sets the logger for pipeline runs.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithMeter sets the meter used for the stage duration histogram.
func WithMeter(meter metric.Meter) Option {
	return func(p *Pipeline) {
		if meter != nil {
			p.meter = meter
		}
	}
}

// New creates a Pipeline. The resolver may be nil when only Execute is used.
func New(fetcher Fetcher, retriever Retriever, resolver GatewayResolver, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, errors.New("pipeline: fetcher is required")
	}
	if retriever == nil {
		return nil, errors.New("pipeline: retriever is required")
	}

	p := &Pipeline{
		fetcher:   fetcher,
		retriever: retriever,
		resolver:  resolver,
		topK:      knowledge.DefaultTopK,
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("threatviz/pipeline"),
		meter:     metricnoop.NewMeterProvider().Meter("threatviz/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")

	duration, err := p.meter.Float64Histogram(observability.MetricStageDuration,
		metric.WithDescription("Wall-clock duration of one pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	p.duration = duration

	return p, nil
}

// Run resolves provider, executes all stages for identifier and returns the
// report. Unknown providers fail with UNSUPPORTED_PROVIDER before any stage
// runs.
func (p *Pipeline) Run(ctx context.Context, identifier, provider string) (*report.Report, error) {
	state, err := p.RunState(ctx, identifier, provider)
	if err != nil {
		return nil, err
	}
	rep, _ := state.Report()
	return rep, nil
}

// RunState is Run returning the full State, including the diagram lint
// findings. On failure the State is nil when provider did not resolve.
func (p *Pipeline) RunState(ctx context.Context, identifier, provider string) (*State, error) {
	if p.resolver == nil {
		return nil, errors.New("pipeline: no gateway resolver configured")
	}
	gw, err := p.resolver.Resolve(ctx, provider)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, identifier, gw)
}

// Execute runs the stages in order with gw and returns the State reached.
// On failure the State holds only the fields written before the failing
// stage and the error is a *StageError.
func (p *Pipeline) Execute(ctx context.Context, identifier string, gw llm.Completer) (*State, error) {
	runID := uuid.New().String()
	state := NewState()

	ctx, span := p.tracer.Start(ctx, "threatviz.pipeline.run",
		trace.WithAttributes(
			attribute.String(observability.AttrRunID, runID),
			attribute.String("cve.input", identifier),
		))
	defer span.End()

	logger := p.logger.With(observability.AttrRunID, runID)
	logger.InfoContext(ctx, "pipeline started", "input", identifier)
	start := time.Now()

	funcs := p.stageFuncs()
	r := &run{input: identifier, gateway: gw}
	for _, stage := range Stages {
		if err := p.runStage(ctx, logger, stage, funcs[stage], r, state); err != nil {
			id, _ := state.Identifier()
			if id == "" {
				id = identifier
			}
			serr := &StageError{Stage: stage, Identifier: id, Err: err}
			span.RecordError(serr)
			span.SetStatus(codes.Error, serr.Error())
			logger.ErrorContext(ctx, "pipeline failed",
				observability.AttrStage, stage,
				observability.AttrCVEID, id,
				"phase", state.Phase(),
				"error", err,
			)
			return state, serr
		}
	}

	id, _ := state.Identifier()
	span.SetAttributes(attribute.String(observability.AttrCVEID, id))
	logger.InfoContext(ctx, "pipeline completed",
		observability.AttrCVEID, id,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return state, nil
}

func (p *Pipeline) runStage(ctx context.Context, logger *slog.Logger, stage Stage, fn stageFunc, r *run, state *State) error {
	ctx, span := p.tracer.Start(ctx, "threatviz.pipeline."+stage.String(),
		trace.WithAttributes(attribute.String(observability.AttrStage, stage.String())))
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	err := fn(ctx, r, state)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String(observability.AttrStage, stage.String()),
		attribute.String("outcome", outcome),
	))
	span.SetAttributes(attribute.String("phase", state.Phase().String()))

	if err == nil {
		logger.DebugContext(ctx, "stage completed",
			observability.AttrStage, stage,
			"phase", state.Phase(),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return err
}
