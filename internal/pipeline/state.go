package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/zero-day-ai/threatviz/internal/mermaid"
	"github.com/zero-day-ai/threatviz/internal/report"
)

// Phase is a pipeline state-machine position.
type Phase string

const (
	PhaseStart     Phase = "START"
	PhaseFetched   Phase = "FETCHED"
	PhaseAnalyzed  Phase = "ANALYZED"
	PhaseModeled   Phase = "MODELED"
	PhaseCritiqued Phase = "CRITIQUED"
	PhaseReported  Phase = "REPORTED"
)

// String returns the string representation of Phase
func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether no further stage can run.
func (p Phase) Terminal() bool {
	return p == PhaseReported
}

// State is the record threaded through the stages. Each field is written by
// exactly one stage, once, and is absent until then. Setters enforce the
// phase order; a State is not safe for concurrent use.
type State struct {
	phase Phase

	identifier   string
	rawRecord    json.RawMessage
	analysis     string
	diagramDraft string
	diagramFinal string
	lint         []mermaid.Violation
	report       *report.Report
}

// NewState returns an empty State in PhaseStart.
func NewState() *State {
	return &State{phase: PhaseStart}
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return s.phase
}

// Identifier returns the normalized identifier, set by the fetch stage.
func (s *State) Identifier() (string, bool) {
	return s.identifier, s.phase != PhaseStart
}

// RawRecord returns a copy of the registry record, set by the fetch stage.
func (s *State) RawRecord() (json.RawMessage, bool) {
	if s.rawRecord == nil {
		return nil, false
	}
	return append(json.RawMessage(nil), s.rawRecord...), true
}

// Analysis returns the narrative analysis, set by the analyze stage.
func (s *State) Analysis() (string, bool) {
	return s.analysis, s.reached(PhaseAnalyzed)
}

// DiagramDraft returns the first diagram, set by the model stage.
func (s *State) DiagramDraft() (string, bool) {
	return s.diagramDraft, s.reached(PhaseModeled)
}

// DiagramFinal returns the corrected diagram, set by the critique stage.
func (s *State) DiagramFinal() (string, bool) {
	return s.diagramFinal, s.reached(PhaseCritiqued)
}

// Lint returns the syntax violations found in the corrected diagram, set by
// the critique stage. An empty result after critique means a clean diagram.
func (s *State) Lint() ([]mermaid.Violation, bool) {
	return append([]mermaid.Violation(nil), s.lint...), s.reached(PhaseCritiqued)
}

// Report returns the final report, set by the report stage.
func (s *State) Report() (*report.Report, bool) {
	return s.report, s.report != nil
}

var phaseOrder = map[Phase]int{
	PhaseStart:     0,
	PhaseFetched:   1,
	PhaseAnalyzed:  2,
	PhaseModeled:   3,
	PhaseCritiqued: 4,
	PhaseReported:  5,
}

func (s *State) reached(p Phase) bool {
	return phaseOrder[s.phase] >= phaseOrder[p]
}

// advance moves from one phase to the next and fails on any other transition.
func (s *State) advance(from, to Phase) error {
	if s.phase != from {
		return fmt.Errorf("state is %s, cannot move to %s", s.phase, to)
	}
	s.phase = to
	return nil
}

func (s *State) setFetched(identifier string, raw json.RawMessage) error {
	if err := s.advance(PhaseStart, PhaseFetched); err != nil {
		return err
	}
	s.identifier = identifier
	s.rawRecord = append(json.RawMessage(nil), raw...)
	return nil
}

func (s *State) setAnalysis(text string) error {
	if err := s.advance(PhaseFetched, PhaseAnalyzed); err != nil {
		return err
	}
	s.analysis = text
	return nil
}

func (s *State) setDiagramDraft(text string) error {
	if err := s.advance(PhaseAnalyzed, PhaseModeled); err != nil {
		return err
	}
	s.diagramDraft = text
	return nil
}

func (s *State) setDiagramFinal(text string, lint []mermaid.Violation) error {
	if err := s.advance(PhaseModeled, PhaseCritiqued); err != nil {
		return err
	}
	s.diagramFinal = text
	s.lint = append([]mermaid.Violation(nil), lint...)
	return nil
}

func (s *State) setReport(r *report.Report) error {
	if err := s.advance(PhaseCritiqued, PhaseReported); err != nil {
		return err
	}
	s.report = r
	return nil
}

// Snapshot is the JSON form of a State. Absent fields are omitted.
type Snapshot struct {
	Phase        Phase               `json:"phase"`
	Identifier   string              `json:"identifier,omitempty"`
	RawRecord    json.RawMessage     `json:"raw_record,omitempty"`
	Analysis     *string             `json:"analysis,omitempty"`
	DiagramDraft *string             `json:"diagram_draft,omitempty"`
	DiagramFinal *string             `json:"diagram_final,omitempty"`
	Lint         []mermaid.Violation `json:"lint,omitempty"`
	Report       *report.Report      `json:"report,omitempty"`
}

// Snapshot returns a copy of the populated fields.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{Phase: s.phase, Report: s.report}
	if id, ok := s.Identifier(); ok {
		snap.Identifier = id
	}
	snap.RawRecord, _ = s.RawRecord()
	if v, ok := s.Analysis(); ok {
		snap.Analysis = &v
	}
	if v, ok := s.DiagramDraft(); ok {
		snap.DiagramDraft = &v
	}
	if v, ok := s.DiagramFinal(); ok {
		snap.DiagramFinal = &v
	}
	snap.Lint, _ = s.Lint()
	return snap
}

// MarshalJSON encodes the Snapshot.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
