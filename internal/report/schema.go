package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// schemaJSON describes the six-field report. Each field is a non-empty
// string or a non-empty list of strings; no other keys are allowed.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://threatviz.dev/schemas/report.json",
  "title": "threatviz report",
  "type": "object",
  "required": ["TITLE", "EXECUTIVE_SUMMARY", "DETAILED_ANALYSIS", "RISK_ASSESSMENT", "THREAT_MODEL", "MITIGATION"],
  "additionalProperties": false,
  "properties": {
    "TITLE":             {"$ref": "#/$defs/field"},
    "EXECUTIVE_SUMMARY": {"$ref": "#/$defs/field"},
    "DETAILED_ANALYSIS": {"$ref": "#/$defs/field"},
    "RISK_ASSESSMENT":   {"$ref": "#/$defs/field"},
    "THREAT_MODEL":      {"$ref": "#/$defs/field"},
    "MITIGATION":        {"$ref": "#/$defs/field"}
  },
  "$defs": {
    "field": {
      "oneOf": [
        {"type": "string", "minLength": 1},
        {"type": "array", "minItems": 1, "items": {"type": "string"}}
      ]
    }
  }
}`

var reportSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compile report schema: %v", err))
	}
	return schema
}

// Schema returns the JSON Schema document the report is validated against.
func Schema() string {
	return schemaJSON
}

// validateSchema returns a readable list of violations, or nil.
func validateSchema(data []byte) error {
	result := reportSchema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors))
	for path, e := range result.Errors {
		problems = append(problems, fmt.Sprintf("%s: %v", path, e))
	}
	sort.Strings(problems)
	return fmt.Errorf("schema validation failed: %s", strings.Join(problems, "; "))
}
