// Package mermaid checks diagram text against the syntax rules the critique
// stage asks the model to follow. Findings are advisory.
package mermaid

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule names a lint check.
type Rule string

const (
	RuleMissingHeader  Rule = "missing-header"
	RuleTitle          Rule = "no-title"
	RuleAngleBrackets  Rule = "no-angle-brackets"
	RuleUnquotedLabel  Rule = "quoted-labels"
	RuleComment        Rule = "no-comments"
	RuleStyleUndefined Rule = "style-after-definition"
)

// Violation is one lint finding. Line is 1-based within the linted text.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("line %d: %s (%s)", v.Line, v.Message, v.Rule)
}

var (
	headerPattern = regexp.MustCompile(`^(flowchart|graph|sequenceDiagram|classDiagram|stateDiagram-v2|stateDiagram|erDiagram|pie|journey|gantt|mindmap|timeline|quadrantChart|requirementDiagram|gitGraph|C4Context|C4Container|C4Component|C4Dynamic|C4Deployment|architecture-beta|block-beta|sankey-beta|xychart-beta)\b`)
	titlePattern  = regexp.MustCompile(`(?i)^title(\s|:|$)`)
	nodePattern   = regexp.MustCompile(`[A-Za-z0-9_]+\s*[\[({]+([^\])}]*)[\])}]+`)
	pipePattern   = regexp.MustCompile(`\|([^|]*)\|`)
	quotedPattern = regexp.MustCompile(`"([^"]*)"`)
	identPattern  = regexp.MustCompile(`[A-Za-z0-9_]+`)
)

// Diagrams splits text holding several diagrams, as found in a report's
// THREAT_MODEL field, into one string per diagram. Lines before the first
// header are dropped.
func Diagrams(src string) []string {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if block := strings.TrimSpace(strings.Join(current, "\n")); block != "" {
			blocks = append(blocks, block)
		}
		current = nil
	}

	started := false
	for _, line := range strings.Split(src, "\n") {
		if headerPattern.MatchString(strings.TrimSpace(line)) {
			flush()
			started = true
		}
		if started {
			current = append(current, line)
		}
	}
	flush()
	return blocks
}

// Lint checks src, which may hold several diagrams, and returns violations
// in line order.
func Lint(src string) []Violation {
	var (
		out         []Violation
		kind        string
		seen        map[string]bool
		headerFound bool
	)
	add := func(rule Rule, line int, format string, args ...any) {
		out = append(out, Violation{Rule: rule, Line: line, Message: fmt.Sprintf(format, args...)})
	}

	for i, line := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := headerPattern.FindStringSubmatch(trimmed); m != nil {
			kind = m[1]
			seen = map[string]bool{}
			headerFound = true
			continue
		}
		if !headerFound {
			add(RuleMissingHeader, n, "text before the first diagram header: %.40q", trimmed)
			headerFound = true
		}

		if strings.Contains(trimmed, "%%") {
			add(RuleComment, n, "%%%% comments and directives are not allowed")
		}
		if titlePattern.MatchString(trimmed) {
			add(RuleTitle, n, "the title keyword is not allowed")
		}

		for _, label := range labels(trimmed, kind) {
			if strings.ContainsAny(label, "<>") {
				add(RuleAngleBrackets, n, "angle brackets in label %.40q", label)
				break
			}
		}

		if !isFlowchart(kind) {
			continue
		}

		if fields := strings.Fields(trimmed); fields[0] == "style" {
			if len(fields) > 1 && !seen[fields[1]] {
				add(RuleStyleUndefined, n, "node %q is styled before it is defined", fields[1])
			}
			continue
		}

		for _, m := range nodePattern.FindAllStringSubmatch(trimmed, -1) {
			label := strings.TrimSpace(m[1])
			if label != "" && !strings.HasPrefix(label, `"`) {
				add(RuleUnquotedLabel, n, "label %.40q is not wrapped in double quotes", label)
				break
			}
		}

		unquoted := quotedPattern.ReplaceAllString(trimmed, " ")
		for _, id := range identPattern.FindAllString(unquoted, -1) {
			seen[id] = true
		}
	}
	return out
}

// labels returns the human-readable label texts on a line.
func labels(line, kind string) []string {
	var out []string
	for _, m := range quotedPattern.FindAllStringSubmatch(line, -1) {
		out = append(out, m[1])
	}
	if isFlowchart(kind) {
		for _, m := range nodePattern.FindAllStringSubmatch(line, -1) {
			out = append(out, m[1])
		}
		for _, m := range pipePattern.FindAllStringSubmatch(line, -1) {
			out = append(out, m[1])
		}
	}
	return out
}

func isFlowchart(kind string) bool {
	return kind == "flowchart" || kind == "graph"
}
