package pipeline

import (
	"fmt"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageAnalyze  Stage = "analyze"
	StageModel    Stage = "model"
	StageCritique Stage = "critique"
	StageReport   Stage = "report"
)

// String returns the string representation of Stage
func (s Stage) String() string {
	return string(s)
}

// Stages lists every stage in execution order.
var Stages = []Stage{StageFetch, StageAnalyze, StageModel, StageCritique, StageReport}

// StageError reports the first failing stage of a run. It unwraps to the
// typed cause, so errors.Is(err, cve.ErrFetchFailed) and similar work on
// the value returned by Run.
type StageError struct {
	Stage      Stage
	Identifier string
	Err        error
}

func (e *StageError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed for %s: %v", e.Stage, e.Identifier, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}
