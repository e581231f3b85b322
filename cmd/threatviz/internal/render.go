package internal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/zero-day-ai/threatviz/internal/report"
)

const reportWidth = 100

// reportStyles groups the lipgloss styles used to draw a report. Styles are
// bound to the destination writer so color is dropped when it is not a
// terminal.
type reportStyles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	body    lipgloss.Style
	diagram lipgloss.Style
}

func newReportStyles(w io.Writer) reportStyles {
	r := lipgloss.NewRenderer(w)
	return reportStyles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F87")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(reportWidth),
		heading: r.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("#5FAFFF")).
			MarginTop(1),
		body: r.NewStyle().
			PaddingLeft(2).
			Width(reportWidth),
		diagram: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Padding(0, 1),
	}
}

// RenderReport draws rep for a terminal: a boxed title, then one section per
// field in presentation order. Numbered fields are laid out one point per
// line and the threat model is kept verbatim inside a frame.
func RenderReport(w io.Writer, rep *report.Report) error {
	if rep == nil {
		return fmt.Errorf("no report to render")
	}
	styles := newReportStyles(w)

	var b strings.Builder
	b.WriteString(styles.title.Render(rep.Title))
	b.WriteByte('\n')

	for _, field := range rep.Fields() {
		if field.Key == report.KeyTitle {
			continue
		}
		b.WriteString(styles.heading.Render(Heading(field.Key)))
		b.WriteByte('\n')

		switch field.Key {
		case report.KeyThreatModel:
			b.WriteString(styles.diagram.Render(strings.TrimSpace(field.Value)))
		default:
			b.WriteString(styles.body.Render(formatPoints(field.Value)))
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Heading turns a report key such as EXECUTIVE_SUMMARY into "Executive Summary".
func Heading(key string) string {
	words := strings.Split(strings.ToLower(key), "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// formatPoints lays out a numbered field one point per line. Numbers are
// printed as the model wrote them and unnumbered text stays unnumbered.
func formatPoints(value string) string {
	points := report.ParsePoints(value)
	lines := make([]string, len(points))
	for i, p := range points {
		if p.Number == 0 {
			lines[i] = p.Text
			continue
		}
		lines[i] = fmt.Sprintf("%d. %s", p.Number, p.Text)
	}
	return strings.Join(lines, "\n")
}

// Status prints short progress lines in the "[*] message" form. It is silent
// when quiet is set.
type Status struct {
	w     io.Writer
	quiet bool

	info    *color.Color
	success *color.Color
	warn    *color.Color
	fail    *color.Color
}

// NewStatus creates a Status writing to w.
func NewStatus(w io.Writer, quiet bool) *Status {
	return &Status{
		w:       w,
		quiet:   quiet,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
	}
}

// Info prints a "[*]" line.
func (s *Status) Info(format string, args ...any) {
	s.print(s.info, "[*]", format, args...)
}

// Success prints a "[+]" line.
func (s *Status) Success(format string, args ...any) {
	s.print(s.success, "[+]", format, args...)
}

// Warn prints a "[!]" line.
func (s *Status) Warn(format string, args ...any) {
	s.print(s.warn, "[!]", format, args...)
}

// Fail prints a "[-]" line. Failures are printed even in quiet mode.
func (s *Status) Fail(format string, args ...any) {
	_, _ = s.fail.Fprintln(s.w, "[-]", fmt.Sprintf(format, args...))
}

func (s *Status) print(c *color.Color, marker, format string, args ...any) {
	if s.quiet {
		return
	}
	_, _ = c.Fprintln(s.w, marker, fmt.Sprintf(format, args...))
}
