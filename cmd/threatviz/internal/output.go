package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/zero-day-ai/threatviz/internal/knowledge"
	"github.com/zero-day-ai/threatviz/internal/mermaid"
	"github.com/zero-day-ai/threatviz/internal/report"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatText is human-readable text output
	FormatText OutputFormat = "text"
	// FormatJSON is structured JSON output
	FormatJSON OutputFormat = "json"
)

const previewLength = 80

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (must be text or json)", s)
	}
}

// SavedReport lists the files analyze wrote for one CVE together with the
// diagram lint findings of the final threat model.
type SavedReport struct {
	ID         string              `json:"id"`
	JSONReport string              `json:"report,omitempty"`
	HTMLReport string              `json:"html_report,omitempty"`
	Lint       []mermaid.Violation `json:"lint"`
}

// BuiltIndex summarizes an index build.
type BuiltIndex struct {
	Name     string             `json:"name"`
	Elapsed  time.Duration      `json:"elapsed_ns"`
	Manifest knowledge.Manifest `json:"manifest"`
}

// Printer writes command results to stdout in the selected format.
type Printer interface {
	Report(rep *report.Report) error
	Saved(saved SavedReport) error
	Built(built BuiltIndex) error
	IndexStatus(st *knowledge.Status) error
	Hits(hits []knowledge.Hit) error
	Success(message string) error
	// Value prints data that has no dedicated text layout.
	Value(data any) error
}

// NewPrinter returns the Printer for format.
func NewPrinter(format OutputFormat, w io.Writer) Printer {
	if format == FormatJSON {
		return &jsonPrinter{w: w}
	}
	return &textPrinter{w: w}
}

type textPrinter struct {
	w io.Writer
}

func (p *textPrinter) Report(rep *report.Report) error {
	return RenderReport(p.w, rep)
}

// Saved prints one written path per line so the output can be piped.
func (p *textPrinter) Saved(saved SavedReport) error {
	for _, path := range []string{saved.JSONReport, saved.HTMLReport} {
		if path == "" {
			continue
		}
		if _, err := fmt.Fprintln(p.w, path); err != nil {
			return err
		}
	}
	return nil
}

func (p *textPrinter) Built(built BuiltIndex) error {
	m := built.Manifest
	return p.Success(fmt.Sprintf("Index %q built: %d chunks from %d sources (%s, %d dimensions) in %s",
		built.Name, m.Chunks, len(m.Sources), m.Model, m.Dimensions, built.Elapsed.Round(time.Millisecond)))
}

func (p *textPrinter) IndexStatus(st *knowledge.Status) error {
	rows := [][]string{
		{"name", st.Name},
		{"path", st.Path},
		{"health", st.Health.State.String()},
		{"detail", st.Health.Message},
	}
	if st.Generation != "" {
		rows = append(rows, []string{"generation", st.Generation})
	}
	if m := st.Manifest; m != nil {
		rows = append(rows,
			[]string{"model", m.Model},
			[]string{"dimensions", strconv.Itoa(m.Dimensions)},
			[]string{"chunks", strconv.Itoa(m.Chunks)},
			[]string{"window", fmt.Sprintf("%d/%d", m.ChunkSize, m.ChunkOverlap)},
			[]string{"sources", strconv.Itoa(len(m.Sources))},
			[]string{"digest", m.Digest},
			[]string{"built", m.BuiltAt.Format(time.RFC3339)},
		)
	}
	return p.table([]string{"field", "value"}, rows)
}

func (p *textPrinter) Hits(hits []knowledge.Hit) error {
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{
			strconv.Itoa(h.Rank),
			strconv.FormatFloat(h.Distance, 'f', 4, 64),
			hitSource(h.Chunk),
			preview(h.Chunk.Text),
		})
	}
	return p.table([]string{"rank", "distance", "source", "text"}, rows)
}

func (p *textPrinter) Success(message string) error {
	_, err := fmt.Fprintf(p.w, "✓ %s\n", message)
	return err
}

func (p *textPrinter) Value(data any) error {
	return writeJSON(p.w, data)
}

// table prints aligned columns under an upper-cased header row.
func (p *textPrinter) table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)

	headerLine := make([]string, len(headers))
	separator := make([]string, len(headers))
	for i, h := range headers {
		headerLine[i] = strings.ToUpper(h)
		separator[i] = strings.Repeat("-", len(h))
	}
	if _, err := fmt.Fprintln(tw, strings.Join(headerLine, "\t")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(tw, strings.Join(separator, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type jsonPrinter struct {
	w io.Writer
}

func (p *jsonPrinter) Report(rep *report.Report) error { return writeJSON(p.w, rep) }

func (p *jsonPrinter) Saved(saved SavedReport) error {
	if saved.Lint == nil {
		saved.Lint = []mermaid.Violation{}
	}
	return writeJSON(p.w, saved)
}

func (p *jsonPrinter) Built(built BuiltIndex) error { return writeJSON(p.w, built.Manifest) }

func (p *jsonPrinter) IndexStatus(st *knowledge.Status) error { return writeJSON(p.w, st) }

func (p *jsonPrinter) Hits(hits []knowledge.Hit) error {
	if hits == nil {
		hits = []knowledge.Hit{}
	}
	return writeJSON(p.w, hits)
}

func (p *jsonPrinter) Success(message string) error {
	return writeJSON(p.w, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func (p *jsonPrinter) Value(data any) error { return writeJSON(p.w, data) }

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

func hitSource(c knowledge.Chunk) string {
	if c.Page > 0 {
		return fmt.Sprintf("%s#page=%d", c.Source, c.Page)
	}
	return c.Source
}

// preview flattens whitespace and cuts text to one table cell.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength-3]) + "..."
}
