package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/zero-day-ai/threatviz/internal/fingerprint"
	"github.com/zero-day-ai/threatviz/internal/llm"
	"github.com/zero-day-ai/threatviz/internal/mermaid"
	"github.com/zero-day-ai/threatviz/internal/observability"
	"github.com/zero-day-ai/threatviz/internal/report"
	"github.com/zero-day-ai/threatviz/internal/sanitize"
	"github.com/zero-day-ai/threatviz/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// run is the input shared by the stages of one invocation.
type run struct {
	input   string
	gateway llm.Completer
}

type stageFunc func(ctx context.Context, r *run, s *State) error

func (p *Pipeline) stageFuncs() map[Stage]stageFunc {
	return map[Stage]stageFunc{
		StageFetch:    p.fetch,
		StageAnalyze:  p.analyze,
		StageModel:    p.model,
		StageCritique: p.critique,
		StageReport:   p.report,
	}
}

// fetch normalizes the identifier leniently and retrieves its record.
func (p *Pipeline) fetch(ctx context.Context, r *run, s *State) error {
	id := fingerprint.Normalize(r.input)
	if id == "" {
		return fingerprint.ErrInvalidFormat
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(observability.AttrCVEID, id))

	rec, err := p.fetcher.Fetch(ctx, id)
	if err != nil {
		if types.CodeOf(err) == "" {
			err = types.WrapError(types.FETCH_FAILED, "registry fetch failed", err)
		}
		return err
	}
	if rec == nil || len(rec.Data) == 0 {
		return types.NewError(types.FETCH_FAILED, fmt.Sprintf("registry returned no record for %s", id))
	}
	return s.setFetched(id, rec.Data)
}

func (p *Pipeline) analyze(ctx context.Context, r *run, s *State) error {
	raw, _ := s.RawRecord()
	grounding, err := p.retriever.Retrieve(ctx, AnalysisQuery, p.topK)
	if err != nil {
		return err
	}
	text, err := p.complete(ctx, r.gateway, AnalysisPrompt(raw, grounding))
	if err != nil {
		return err
	}
	return s.setAnalysis(text)
}

func (p *Pipeline) model(ctx context.Context, r *run, s *State) error {
	analysis, _ := s.Analysis()
	reference, err := p.retriever.Retrieve(ctx, DiagramQuery, p.topK)
	if err != nil {
		return err
	}
	text, err := p.complete(ctx, r.gateway, ModelPrompt(analysis, reference))
	if err != nil {
		return err
	}
	return s.setDiagramDraft(text)
}

// critique asks for a corrected diagram and lints the result. Lint findings
// are logged and recorded on the span; they never fail the stage.
func (p *Pipeline) critique(ctx context.Context, r *run, s *State) error {
	draft, _ := s.DiagramDraft()
	text, err := p.complete(ctx, r.gateway, CritiquePrompt(draft))
	if err != nil {
		return err
	}

	violations := mermaid.Lint(text)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("mermaid.violations", len(violations)))
	for _, v := range violations {
		span.AddEvent("mermaid.violation", trace.WithAttributes(
			attribute.String("rule", string(v.Rule)),
			attribute.Int("line", v.Line),
		))
	}
	if len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.String()
		}
		id, _ := s.Identifier()
		p.logger.WarnContext(ctx, "diagram still violates syntax rules after critique",
			observability.AttrCVEID, id,
			"count", len(violations),
			"violations", strings.Join(msgs, "; "),
		)
	}

	return s.setDiagramFinal(text, violations)
}

func (p *Pipeline) report(ctx context.Context, r *run, s *State) error {
	analysis, _ := s.Analysis()
	diagram, _ := s.DiagramFinal()
	text, err := p.complete(ctx, r.gateway, ReportPrompt(analysis, diagram))
	if err != nil {
		return err
	}
	rep, err := report.Parse(text)
	if err != nil {
		return err
	}
	return s.setReport(rep)
}

// complete calls the gateway and sanitizes the response. A response that is
// empty after cleaning is an upstream failure.
func (p *Pipeline) complete(ctx context.Context, gw llm.Completer, prompt string) (string, error) {
	out, err := gw.Complete(ctx, prompt)
	if err != nil {
		if types.CodeOf(err) == "" {
			err = types.WrapError(types.UPSTREAM_ERROR, "completion failed", err)
		}
		return "", err
	}
	cleaned := sanitize.Clean(out)
	if cleaned == "" {
		return "", types.NewError(types.UPSTREAM_ERROR, "model response is empty after sanitization")
	}
	return cleaned, nil
}
