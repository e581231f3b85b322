package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// codeBlockPattern matches markdown code blocks with optional language tag
// Captures: (1) optional language, (2) content
var codeBlockPattern = regexp.MustCompile(`(?s)` + "```" + `(\w*)\s*\n(.+?)\n` + "```")

// ExtractJSON extracts a JSON object from model output that may carry
// surrounding prose or markdown.
// Priority:
//  1. an object inside a ```json or untagged code block
//  2. the first balanced {...} in the text
func ExtractJSON(response string) (string, error) {
	if jsonStr, found := extractFromCodeBlock(response); found {
		return jsonStr, nil
	}

	if jsonStr, found := extractRawObject(response); found {
		return jsonStr, nil
	}

	return "", fmt.Errorf("no valid JSON object found in response")
}

// extractFromCodeBlock returns the first code block whose content is a JSON
// object. Blocks tagged with another language are skipped.
func extractFromCodeBlock(response string) (string, bool) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		lang := strings.ToLower(match[1])
		content := strings.TrimSpace(match[2])

		if lang != "" && lang != "json" {
			continue
		}
		if strings.HasPrefix(content, "{") && isValidJSON(content) {
			return content, true
		}
	}
	return "", false
}

// extractRawObject tries each '{' in turn and returns the first one that
// opens a balanced, valid JSON object.
func extractRawObject(response string) (string, bool) {
	for offset := 0; offset < len(response); {
		start := strings.IndexByte(response[offset:], '{')
		if start < 0 {
			return "", false
		}
		start += offset

		if jsonStr := findMatchingBrace(response[start:]); jsonStr != "" && isValidJSON(jsonStr) {
			return jsonStr, true
		}
		offset = start + 1
	}
	return "", false
}

// findMatchingBrace returns the prefix of s up to the brace closing s[0],
// ignoring braces inside JSON strings.
func findMatchingBrace(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}

	return ""
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}
