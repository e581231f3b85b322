// Package report parses and validates the six-field threat report produced
// by the final pipeline stage.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zero-day-ai/threatviz/internal/types"
)

// Report field keys, in presentation order.
const (
	KeyTitle            = "TITLE"
	KeyExecutiveSummary = "EXECUTIVE_SUMMARY"
	KeyDetailedAnalysis = "DETAILED_ANALYSIS"
	KeyRiskAssessment   = "RISK_ASSESSMENT"
	KeyThreatModel      = "THREAT_MODEL"
	KeyMitigation       = "MITIGATION"
)

// Keys lists the report keys in presentation order.
var Keys = []string{
	KeyTitle,
	KeyExecutiveSummary,
	KeyDetailedAnalysis,
	KeyRiskAssessment,
	KeyThreatModel,
	KeyMitigation,
}

// ErrMalformedReport matches every Parse failure.
var ErrMalformedReport = types.NewError(types.MALFORMED_REPORT, "malformed report")

// Report is the final structured output. Multi-point fields use numbered
// lines ("1. ...\n2. ..."); ThreatModel holds one or more diagram blocks
// separated by blank lines.
type Report struct {
	Title            string `json:"TITLE"`
	ExecutiveSummary string `json:"EXECUTIVE_SUMMARY"`
	DetailedAnalysis string `json:"DETAILED_ANALYSIS"`
	RiskAssessment   string `json:"RISK_ASSESSMENT"`
	ThreatModel      string `json:"THREAT_MODEL"`
	Mitigation       string `json:"MITIGATION"`
}

// Field is one key/value pair of a report.
type Field struct {
	Key   string
	Value string
}

// Fields returns the report as key/value pairs in presentation order.
func (r *Report) Fields() []Field {
	return []Field{
		{KeyTitle, r.Title},
		{KeyExecutiveSummary, r.ExecutiveSummary},
		{KeyDetailedAnalysis, r.DetailedAnalysis},
		{KeyRiskAssessment, r.RiskAssessment},
		{KeyThreatModel, r.ThreatModel},
		{KeyMitigation, r.Mitigation},
	}
}

// Get returns the value stored under key.
func (r *Report) Get(key string) (string, bool) {
	for _, f := range r.Fields() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Validate checks that every field carries text.
func (r *Report) Validate() error {
	var empty []string
	for _, f := range r.Fields() {
		if strings.TrimSpace(f.Value) == "" {
			empty = append(empty, f.Key)
		}
	}
	if len(empty) > 0 {
		return types.NewError(types.MALFORMED_REPORT,
			fmt.Sprintf("report fields are empty: %s", strings.Join(empty, ", ")))
	}
	return nil
}

// text accepts a JSON string or a list of strings.
type text struct {
	value string
	list  []string
}

func (t *text) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &t.value); err == nil {
		return nil
	}
	return json.Unmarshal(data, &t.list)
}

func (t text) join(sep string) string {
	if t.list == nil {
		return strings.TrimSpace(t.value)
	}
	parts := make([]string, 0, len(t.list))
	for _, p := range t.list {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, sep)
}

// Parse extracts the JSON object from model output, checks it against the
// report schema and returns the populated Report. Any deviation from the
// six-field shape is MALFORMED_REPORT; no field is ever defaulted.
func Parse(output string) (*Report, error) {
	raw, err := ExtractJSON(output)
	if err != nil {
		return nil, types.WrapError(types.MALFORMED_REPORT, "report is not a JSON object", err)
	}

	if err := validateSchema([]byte(raw)); err != nil {
		return nil, types.WrapError(types.MALFORMED_REPORT, "report does not match the six-field shape", err)
	}

	var fields map[string]text
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, types.WrapError(types.MALFORMED_REPORT, "failed to decode report fields", err)
	}

	r := &Report{
		Title:            fields[KeyTitle].join(" "),
		ExecutiveSummary: fields[KeyExecutiveSummary].join("\n"),
		DetailedAnalysis: fields[KeyDetailedAnalysis].join("\n"),
		RiskAssessment:   fields[KeyRiskAssessment].join("\n"),
		ThreatModel:      fields[KeyThreatModel].join("\n\n"),
		Mitigation:       fields[KeyMitigation].join("\n"),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Point is one item of a numbered field. Number is the model's own number,
// or 0 for text that is not numbered, such as a preamble.
type Point struct {
	Number int    `json:"number,omitempty"`
	Text   string `json:"text"`
}

// ParsePoints splits numbered-line text ("1. a\n2. b") into its items,
// keeping the numbers as written. Lines before the first numbered line form
// one unnumbered point. Indented sub-points stay with their parent.
func ParsePoints(s string) []Point {
	var (
		points  []Point
		number  int
		current strings.Builder
	)
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			points = append(points, Point{Number: number, Text: text})
		}
		current.Reset()
	}

	for _, line := range strings.Split(s, "\n") {
		if n, item, ok := numbered(line); ok {
			flush()
			number = n
			current.WriteString(item)
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()
	return points
}

// numbered reports whether line starts a top-level item like "3. text" and
// returns the number and text. Indented sub-points stay with their parent.
func numbered(line string) (int, string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(line) || line[i] != '.' || line[i+1] != ' ' {
		return 0, "", false
	}
	n, err := strconv.Atoi(line[:i])
	if err != nil {
		return 0, "", false
	}
	return n, strings.TrimSpace(line[i+2:]), true
}
