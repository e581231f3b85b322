package pipeline

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// AnalysisQuery retrieves framework context for the analyze stage.
const AnalysisQuery = "PASTA stages attack surface risk analysis STRIDE mapping"

// DiagramQuery retrieves diagram syntax reference for the model stage.
const DiagramQuery = `Syntax reference / basics: Mermaid Syntax Reference
Sequence diagrams: Sequence Diagram
Class diagrams: Class Diagram
State diagrams: State Diagram
Entity-relationship diagrams: ER Diagram
Pie charts: Pie Diagram
C4 / Architecture diagrams: C4 Diagram
Architecture diagrams: Architecture`

const analystInstructions = `You are a security analysis agent.

Rules:
- Read the CVE JSON record and write an effective analysis covering the CVSS score, key findings and mitigation.
- You MUST ground all threat modeling decisions in the provided context.
- Do NOT invent new framework steps.`

const modelerInstructions = `You are a Threat Modeling expert who creates valid Mermaid diagrams.
You know multiple Mermaid diagram types and use several diagram types and patterns for visualization friendly threat modeling.
Focus on the STRIDE and PASTA threat modeling frameworks while generating the visualization.
Your output must be Mermaid syntax only, without any extra information.`

// CritiqueRules are the syntax constraints every final diagram must meet.
var CritiqueRules = []string{
	"DO NOT use the keyword `title` anywhere in the diagram.",
	"DO NOT use angle brackets `< >` in labels, node text, or subgraph names.",
	"Avoid special characters that can break parsing (use words instead of symbols).",
	"Wrap all human-readable labels in double quotes.",
	"Ensure all nodes are defined before being styled.",
	"Do not write any non-Mermaid text after the diagram.",
	"Do not use comments starting with %%. Render Mermaid syntax only.",
}

const critiqueAllowed = `ALLOWED:
- subgraph blocks
- arrows (` + "`-->`, `-- text -->`" + `)
- styles (` + "`style Node fill:#color`" + `)

OUTPUT FORMAT:
- Output ONLY valid Mermaid code
- Do NOT include explanations or markdown
- The diagram must render in Mermaid v10+`

const reporterInstructions = `You are a CVE Threat Intelligence report writer.
Your task is to analyze a raw report written by a junior analyst and produce a comprehensive, professional report.

Rules:
1. Your output must be a valid JSON object with exactly these keys:
{
"TITLE": "A concise title containing the CVE ID and CVSS score",
"EXECUTIVE_SUMMARY": "A short introduction of the CVE with CVSS score and other high-level info. Use multiple points separated by a newline, starting with '1.', '2.', etc.",
"DETAILED_ANALYSIS": "A detailed technical analysis of the CVE. Use multiple points separated by newline characters, starting with '1.', '2.', '3.', etc.",
"RISK_ASSESSMENT": "Risk assessment including CVSS vector analysis from an attacker's perspective. Include STRIDE and PASTA threat modeling separately, using newline characters for each point.",
"THREAT_MODEL": "Mermaid syntax for diagrams representing the threat model. Include sequenceDiagram, graph, stateDiagram, or other supported mermaid types as needed.",
"MITIGATION": "Exact mitigation steps or recommendations provided in the junior's report. Use multiple points separated by newline characters starting with '1.', '2.', etc."
}

2. Each field must be either a string (with multiple lines separated by newline characters) or a list of strings. Do not serialize the JSON object itself inside any field.
3. Preserve all factual information from the junior's report, but enhance clarity and professionalism.
4. Do not add any extra information that is not present in the junior's report.
5. Your output must be a JSON object only with no extra text before or after.`

// AnalysisPrompt grounds the narrative analysis in the registry record and
// retrieved framework context.
func AnalysisPrompt(record json.RawMessage, context string) string {
	var b strings.Builder
	b.WriteString("CVE DATA:\n")
	b.WriteString(formatRecord(record))
	b.WriteString("\n\n")
	b.WriteString(analystInstructions)
	b.WriteString("\n\nIntroduce PASTA and STRIDE threat modeling using the reference context below.\n\nREFERENCE CONTEXT:\n")
	b.WriteString(context)
	b.WriteString("\n\nTask:\nProvide a detailed paragraph of analysis. Do not add bullet points or any styled content.\n")
	return b.String()
}

// ModelPrompt asks for a diagram-based threat model of analysis, using the
// retrieved syntax reference.
func ModelPrompt(analysis, syntaxReference string) string {
	var b strings.Builder
	b.WriteString(modelerInstructions)
	b.WriteString("\n\nMermaid Documentation:\nUse the documentation below for effective writing.\n")
	b.WriteString(syntaxReference)
	b.WriteString("\n\nUse the report below to reconcile the exact information needed for threat modeling:\n")
	b.WriteString(analysis)
	b.WriteString("\n")
	return b.String()
}

// CritiquePrompt asks for a corrected copy of draft that satisfies
// CritiqueRules.
func CritiquePrompt(draft string) string {
	var b strings.Builder
	b.WriteString("You are a skilled Mermaid syntax analyzer. Perform a quality check on the provided Mermaid syntax and output the fixed version. Follow the rules below.\n\nSTRICT RULES:\n")
	for i, rule := range CritiqueRules {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(critiqueAllowed)
	b.WriteString("\n\nReview the code below and fix the Mermaid syntax.\n")
	b.WriteString(draft)
	b.WriteString("\n")
	return b.String()
}

// ReportPrompt asks for the six-field JSON report built from the analysis
// and the corrected diagram.
func ReportPrompt(analysis, diagram string) string {
	var b strings.Builder
	b.WriteString(reporterInstructions)
	b.WriteString("\n\nJunior's Report:\n")
	b.WriteString(analysis)
	b.WriteString("\n\nMermaid syntax:\n")
	b.WriteString(diagram)
	b.WriteString("\n")
	return b.String()
}

// formatRecord indents valid JSON and returns anything else unchanged.
func formatRecord(record json.RawMessage) string {
	var out bytes.Buffer
	if err := json.Indent(&out, record, "", "  "); err != nil {
		return string(record)
	}
	return out.String()
}
