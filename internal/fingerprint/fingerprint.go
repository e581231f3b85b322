// Package fingerprint normalizes and validates vulnerability identifiers.
//
// Normalize is the lenient form used inside the pipeline, where input may come
// from conversational text. Validate is the strict form used at interactive
// entry points. Both are pure string transforms.
package fingerprint

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/zero-day-ai/threatviz/internal/types"
	"golang.org/x/text/unicode/norm"
)

// Prefix is the registry namespace every identifier starts with.
const Prefix = "CVE"

// ErrInvalidFormat is returned by Validate for identifiers that do not match
// CVE-YYYY-NNNN with a 4 to 7 digit sequence number.
var ErrInvalidFormat = types.NewError(types.INVALID_FORMAT, "identifier must match CVE-YYYY-NNNN")

var (
	strictPattern  = regexp.MustCompile(`^CVE-[0-9]{4}-[0-9]{4,7}$`)
	extractPattern = regexp.MustCompile(`(?i)\bCVE-[0-9]{4}-[0-9]{4,7}\b`)
)

// dashes lists dash-like code points outside the Pd category that still read
// as a hyphen in pasted text.
var dashes = map[rune]bool{
	'−': true, // minus sign
	'⁃': true, // hyphen bullet
	'˗': true, // modifier letter minus
	'➖': true, // heavy minus sign
}

// Normalize canonicalizes raw with NFKC, maps every dash-like rune to '-',
// drops anything outside [A-Za-z0-9-] and upper-cases the result.
// Normalize is idempotent.
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isDash(r):
			b.WriteByte('-')
		case isASCIILetter(r) || isASCIIDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Validate enforces the strict identifier shape. Surrounding whitespace is
// ignored and the prefix is matched case-insensitively; a canonical input is
// returned unchanged.
func Validate(raw string) (string, error) {
	candidate := strings.ToUpper(strings.TrimSpace(raw))
	if !strictPattern.MatchString(candidate) {
		return "", types.NewError(types.INVALID_FORMAT, fmt.Sprintf("invalid identifier %.64q: must match CVE-YYYY-NNNN", raw))
	}
	return candidate, nil
}

// Extract returns the first identifier embedded in free text, upper-cased.
// It reports false when text contains none.
func Extract(text string) (string, bool) {
	match := extractPattern.FindString(norm.NFKC.String(text))
	if match == "" {
		return "", false
	}
	return strings.ToUpper(match), true
}

// Resolve accepts either a bare identifier or free text that mentions one.
func Resolve(input string) (string, error) {
	if id, err := Validate(input); err == nil {
		return id, nil
	}
	if id, ok := Extract(input); ok {
		return id, nil
	}
	return "", types.NewError(types.INVALID_FORMAT, fmt.Sprintf("no identifier found in %.64q", input))
}

func isDash(r rune) bool {
	return r == '-' || unicode.Is(unicode.Pd, r) || dashes[r]
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
