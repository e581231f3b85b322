package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/threatviz/cmd/threatviz/internal"
	"github.com/zero-day-ai/threatviz/internal/fingerprint"
	"github.com/zero-day-ai/threatviz/internal/fsx"
	"github.com/zero-day-ai/threatviz/internal/report"
)

var analyzeFlags struct {
	provider   string
	jsonReport bool
	htmlReport string
	outDir     string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze CVE-ID|TEXT...",
	Short: "Produce a threat report for a CVE",
	Long: `Run the full analysis for one CVE: fetch the record, analyze it against
the reference index, draw and repair a Mermaid threat model, and emit a
six-field report.

The identifier may be given bare or inside free text; the first CVE ID
found is used. The reference index is built on first use.

Examples:
  # Render the report in the terminal
  threatviz analyze CVE-2021-44228

  # Write CVE-2021-44228.json to ./reports using anthropic
  threatviz analyze -p claude --json-report --out-dir reports CVE-2021-44228

  # Print the report JSON to stdout
  threatviz analyze -o json "what is cve-2023-4863?"

  # Also write a browsable page with rendered diagrams
  threatviz analyze --html-report log4shell.html CVE-2021-44228`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: internal.NoCompletion,
	RunE:              runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFlags.provider, "provider", "p", "", "LLM provider (default: llm.default_provider)")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.jsonReport, "json-report", false, "Write the report to <CVE-ID>.json")
	analyzeCmd.Flags().StringVar(&analyzeFlags.htmlReport, "html-report", "", "Write the report as an HTML page to `path`")
	analyzeCmd.Flags().StringVar(&analyzeFlags.outDir, "out-dir", "", "Directory for --json-report (default: output.dir)")

	_ = analyzeCmd.RegisterFlagCompletionFunc("provider", internal.CompleteProvider)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := current.cfg
	status := internal.NewStatus(cmd.ErrOrStderr(), current.flags.IsQuiet())

	id, err := fingerprint.Resolve(strings.Join(args, " "))
	if err != nil {
		return err
	}

	provider := analyzeFlags.provider
	if provider == "" {
		provider = cfg.LLM.DefaultProvider
	}

	store, err := newStore(cfg)
	if err != nil {
		return internal.WrapError(internal.ExitIndexError, "failed to open knowledge store", err)
	}
	if !store.Exists(cfg.Knowledge.IndexName) {
		status.Info("Building reference index %q (first run)", cfg.Knowledge.IndexName)
	}

	p, err := newPipeline(cfg, store)
	if err != nil {
		return err
	}

	status.Info("Threatviz analysis: %s (provider: %s)", id, provider)
	state, err := p.RunState(cmd.Context(), id, provider)
	if err != nil {
		status.Fail("Analysis of %s failed", id)
		return err
	}
	rep, _ := state.Report()
	lint, _ := state.Lint()
	for _, v := range lint {
		status.Warn("Threat model diagram: %s", v)
	}

	printer := internal.NewPrinter(current.flags.GetOutputFormat(), cmd.OutOrStdout())
	saved := internal.SavedReport{ID: id, Lint: lint}

	if analyzeFlags.jsonReport {
		outDir := analyzeFlags.outDir
		if outDir == "" {
			outDir = cfg.Output.Dir
		}
		path, err := writeReport(outDir, id, rep)
		if err != nil {
			return internal.WrapError(internal.ExitReportError, "failed to write report", err)
		}
		status.Success("JSON Report: %s", path)
		saved.JSONReport = path
	}
	if analyzeFlags.htmlReport != "" {
		if err := writeHTMLReport(analyzeFlags.htmlReport, rep); err != nil {
			return internal.WrapError(internal.ExitReportError, "failed to write HTML report", err)
		}
		status.Success("HTML Report: %s", analyzeFlags.htmlReport)
		saved.HTMLReport = analyzeFlags.htmlReport
	}

	if saved.JSONReport != "" || saved.HTMLReport != "" {
		return printer.Saved(saved)
	}
	if err := printer.Report(rep); err != nil {
		return err
	}
	status.Info("Use --json-report to save the report as %s.json", id)
	return nil
}

// writeReport stores rep as indented JSON at <dir>/<id>.json and returns the
// path.
func writeReport(dir, id string, rep *report.Report) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rep); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	path := filepath.Join(dir, id+".json")
	if err := fsx.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// writeHTMLReport renders rep as a standalone page at path.
func writeHTMLReport(path string, rep *report.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, rep, time.Now()); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
