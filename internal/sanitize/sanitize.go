// Package sanitize strips presentation markup from language-model output so
// that only plain structured text enters pipeline state.
package sanitize

import (
	"regexp"
	"strings"
)

// fenceLang matches the language tags models put after an opening fence.
// Other words after a fence are kept, so "```graph TD" keeps its header.
const fenceLang = `(?:(?i:mermaid|json|jsonc|text|txt|plaintext|markdown|md|yaml|yml|html|xml|javascript|js|typescript|ts|python|py|bash|sh|shell|console|go|java|sql|diff)\b)?`

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order. Every rule only removes characters, so repeating the
// sequence until nothing changes always terminates.
var rules = []rewrite{
	{regexp.MustCompile(`\r\n`), "\n"},
	// heading markers, including stacked ones like "# ## Title"
	{regexp.MustCompile(`(?m)^[ \t]*(?:#{1,6}[ \t]*)+`), ""},
	// reasoning blocks and their contents
	{regexp.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`), ""},
	// whole fence lines, tagged or not
	{regexp.MustCompile("(?m)^[ \\t]*```" + fenceLang + "[ \\t]*(?:\\n|$)"), ""},
	// fences sharing a line with content
	{regexp.MustCompile("```" + fenceLang), ""},
	// bold, then italic
	{regexp.MustCompile(`\*\*([^*\n]+?)\*\*`), "$1"},
	{regexp.MustCompile(`(^|[^\w])__([^_\n]+?)__([^\w]|$)`), "$1$2$3"},
	{regexp.MustCompile(`\*([^*\n]+?)\*`), "$1"},
	{regexp.MustCompile(`(^|[^\w])_([^_\n]+?)_([^\w]|$)`), "$1$2$3"},
	// inline code spans
	{regexp.MustCompile("`([^`\\n]*)`"), "$1"},
	// two or more blank lines become one
	{regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`), "\n\n"},
}

// Clean applies the rewrite rules until the text stops changing and trims the
// result. Clean is deterministic and idempotent.
func Clean(text string) string {
	for {
		next := strings.TrimSpace(apply(text))
		if next == text {
			return text
		}
		text = next
	}
}

func apply(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}
