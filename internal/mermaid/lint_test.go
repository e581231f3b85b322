package mermaid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules(vs []Violation) []Rule {
	out := make([]Rule, len(vs))
	for i, v := range vs {
		out[i] = v.Rule
	}
	return out
}

func TestLint_Clean(t *testing.T) {
	src := `flowchart TD
    A["Attacker"] -->|"crafted JNDI string"| B["Log4j Logger"]
    B --> C["LDAP Server"]
    subgraph "Trust Boundary"
        B
    end
    style A fill:#f96,stroke:#333

sequenceDiagram
    participant Attacker
    participant App
    Attacker->>App: send payload
    App-->>Attacker: remote class loaded`

	assert.Empty(t, Lint(src))
}

func TestLint_Violations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Rule
		line int
	}{
		{
			name: "missing header",
			src:  "Here is the diagram:\nflowchart TD\n    A[\"x\"]",
			want: []Rule{RuleMissingHeader},
			line: 1,
		},
		{
			name: "title keyword",
			src:  "pie\n    title Exposure by vector\n    \"Network\" : 80",
			want: []Rule{RuleTitle},
			line: 2,
		},
		{
			name: "comment",
			src:  "flowchart LR\n    %% attacker path\n    A[\"x\"] --> B[\"y\"]",
			want: []Rule{RuleComment},
			line: 2,
		},
		{
			name: "angle brackets in quoted label",
			src:  "flowchart LR\n    A[\"Map<String>\"] --> B[\"y\"]",
			want: []Rule{RuleAngleBrackets},
			line: 2,
		},
		{
			name: "angle brackets in edge label",
			src:  "flowchart LR\n    A[\"x\"] -->|<br>| B[\"y\"]",
			want: []Rule{RuleAngleBrackets},
			line: 2,
		},
		{
			name: "unquoted label",
			src:  "graph TD\n    A[Attacker] --> B[\"y\"]",
			want: []Rule{RuleUnquotedLabel},
			line: 2,
		},
		{
			name: "style before definition",
			src:  "flowchart TD\n    style A fill:#f00\n    A[\"x\"]",
			want: []Rule{RuleStyleUndefined},
			line: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lint(tt.src)
			require.Equal(t, tt.want, rules(got))
			assert.Equal(t, tt.line, got[0].Line)
			assert.Contains(t, got[0].String(), string(tt.want[0]))
		})
	}
}

func TestLint_SequenceDiagramsSkipFlowchartRules(t *testing.T) {
	src := "sequenceDiagram\n    Attacker->>Server: lookup(ldap)\n    Server-->>Attacker: ok"
	assert.Empty(t, Lint(src))
}

func TestDiagrams(t *testing.T) {
	src := "preamble\nflowchart TD\n    A --> B\n\nsequenceDiagram\n    A->>B: hi\n"
	blocks := Diagrams(src)
	require.Len(t, blocks, 2)
	assert.Equal(t, "flowchart TD\n    A --> B", blocks[0])
	assert.Equal(t, "sequenceDiagram\n    A->>B: hi", blocks[1])

	assert.Empty(t, Diagrams("no diagrams here"))
}
