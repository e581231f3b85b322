package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "raw object",
			response: `{"summary": "test", "status": "complete"}`,
			want:     `{"summary": "test", "status": "complete"}`,
		},
		{
			name:     "json code block",
			response: "Here's the summary:\n```json\n{\"key\": \"value\"}\n```\nDone.",
			want:     `{"key": "value"}`,
		},
		{
			name:     "uppercase tag",
			response: "```JSON\n{\"key\": \"value\"}\n```",
			want:     `{"key": "value"}`,
		},
		{
			name:     "untagged block",
			response: "```\n{\"key\": \"value\", \"number\": 42}\n```",
			want:     `{"key": "value", "number": 42}`,
		},
		{
			name:     "skips other languages",
			response: "```mermaid\nflowchart TD\n```\n\n```json\n{\"result\": true}\n```",
			want:     `{"result": true}`,
		},
		{
			name:     "prose around object",
			response: "Sure! {\"a\": 1} hope that helps",
			want:     `{"a": 1}`,
		},
		{
			name:     "braces inside strings",
			response: `{"THREAT_MODEL": "classDiagram\n class A { +run() }", "x": "}"}`,
			want:     `{"THREAT_MODEL": "classDiagram\n class A { +run() }", "x": "}"}`,
		},
		{
			name:     "escaped quotes",
			response: `prefix {"label": "A[\"Start\"]"} suffix`,
			want:     `{"label": "A[\"Start\"]"}`,
		},
		{
			name:     "skips unbalanced brace before object",
			response: "Use {curly} syntax. {\"ok\": true}",
			want:     `{"ok": true}`,
		},
		{
			name:     "nested objects",
			response: `{"outer": {"inner": {"deep": 1}}} trailing`,
			want:     `{"outer": {"inner": {"deep": 1}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	for _, response := range []string{"", "no json here", "{broken", `["array", "only"]`} {
		_, err := ExtractJSON(response)
		assert.Error(t, err, response)
	}
}
