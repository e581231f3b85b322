package knowledge

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/net/html"
)

// extractHTML returns the page title and its visible text. Script, style and
// navigation chrome are dropped; preformatted blocks keep their line breaks.
func extractHTML(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, template, svg, nav, header, footer").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	w := &textWriter{}
	for _, n := range root.Nodes {
		w.node(n)
	}
	return title, collapseBlankLines(w.b.String()), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "tr": true, "br": true, "pre": true, "blockquote": true,
}

// textWriter flattens a DOM into text, collapsing runs of whitespace to one
// space and never starting a line with a space.
type textWriter struct {
	b    strings.Builder
	last byte
}

func (w *textWriter) write(s string) {
	if s == "" {
		return
	}
	w.b.WriteString(s)
	w.last = s[len(s)-1]
}

func (w *textWriter) space() {
	if w.last != 0 && w.last != ' ' && w.last != '\n' {
		w.write(" ")
	}
}

func (w *textWriter) text(data string) {
	fields := strings.Fields(data)
	if len(fields) == 0 {
		if data != "" {
			w.space()
		}
		return
	}
	if startsWithSpace(data) {
		w.space()
	}
	w.write(strings.Join(fields, " "))
	if endsWithSpace(data) {
		w.space()
	}
}

func (w *textWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		if n.Data == "pre" {
			w.write("\n")
			w.write(rawText(n))
			w.write("\n")
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		w.write("\n")
	}
}

func startsWithSpace(s string) bool {
	return strings.TrimLeft(s, " \t\r\n") != s
}

func endsWithSpace(s string) bool {
	return strings.TrimRight(s, " \t\r\n") != s
}

func rawText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Trim(b.String(), "\n")
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// extractPDF returns the plain text of each page. The file is validated with
// pdfcpu first so malformed documents fail before text extraction.
func extractPDF(path string) ([]string, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, ctx.PageCount)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// extractJSON selects records with a JSONPath expression and renders each as
// canonical, key-sorted JSON text.
func extractJSON(data []byte, selector string) ([]string, error) {
	if selector == "" {
		selector = "$"
	}
	expr, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", selector, err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	var records []string
	for _, match := range expr.Get(doc) {
		if match == nil {
			continue
		}
		records = append(records, oj.JSON(match, &oj.Options{Sort: true, Indent: 2}))
	}
	return records, nil
}

func readLocal(path string) ([]byte, error) {
	// #nosec G304 -- reference paths come from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), nil
}
