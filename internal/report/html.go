package report

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/zero-day-ai/threatviz/internal/mermaid"
)

// htmlSection is one block of the HTML page. Diagram sections carry
// Diagrams, all others carry Points.
type htmlSection struct {
	Heading  string
	Diagram  bool
	Points   []Point
	Diagrams []string
}

type htmlTemplateData struct {
	Title       string
	GeneratedAt string
	Sections    []htmlSection
}

var htmlReportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// RenderHTML writes rep as a standalone HTML page. Numbered fields keep the
// model's numbering, and each diagram in THREAT_MODEL becomes its own
// mermaid block rendered client-side. All report text is escaped.
func RenderHTML(w io.Writer, rep *Report, generatedAt time.Time) error {
	if rep == nil {
		return fmt.Errorf("no report to render")
	}

	data := htmlTemplateData{
		Title:       rep.Title,
		GeneratedAt: generatedAt.UTC().Format("2006-01-02 15:04:05 MST"),
	}
	for _, f := range rep.Fields() {
		switch f.Key {
		case KeyTitle:
			continue
		case KeyThreatModel:
			data.Sections = append(data.Sections, htmlSection{
				Heading:  sectionHeading(f.Key),
				Diagram:  true,
				Diagrams: diagramBlocks(f.Value),
			})
		default:
			data.Sections = append(data.Sections, htmlSection{
				Heading: sectionHeading(f.Key),
				Points:  ParsePoints(f.Value),
			})
		}
	}

	if err := htmlReportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute HTML template: %w", err)
	}
	return nil
}

// diagramBlocks splits a THREAT_MODEL value into diagrams. Text without a
// recognizable header is kept as one block so nothing the model wrote is lost.
func diagramBlocks(value string) []string {
	if blocks := mermaid.Diagrams(value); len(blocks) > 0 {
		return blocks
	}
	if v := strings.TrimSpace(value); v != "" {
		return []string{v}
	}
	return nil
}

// sectionHeading turns EXECUTIVE_SUMMARY into "Executive Summary".
func sectionHeading(key string) string {
	words := strings.Split(strings.ToLower(key), "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"></script>
    <script>mermaid.initialize({ startOnLoad: true });</script>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; background: #f9f9f9; color: #2c3e50; }
        h2 { color: #34495e; }
        .section { background: #fff; border-radius: 8px; padding: 15px 20px; margin-bottom: 20px; box-shadow: 0 2px 6px rgba(0,0,0,0.1); }
        .point { white-space: pre-line; margin: 6px 0; }
        .num { font-weight: bold; margin-right: 4px; }
        .mermaid { background: #fff; border-radius: 8px; padding: 10px; margin-top: 10px; }
        .meta { color: #7f8c8d; font-size: 0.9em; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p class="meta">Generated {{.GeneratedAt}}</p>
{{range .Sections}}
    <div class="section">
        <h2>{{.Heading}}</h2>
{{- if .Diagram}}
{{- range .Diagrams}}
        <pre class="mermaid">
{{.}}
        </pre>
{{- else}}
        <p><b>No threat model diagrams available</b></p>
{{- end}}
{{- else}}
{{- range .Points}}
        <p class="point">{{if .Number}}<span class="num">{{.Number}}.</span>{{end}}{{.Text}}</p>
{{- end}}
{{- end}}
    </div>
{{end}}
</body>
</html>
`
