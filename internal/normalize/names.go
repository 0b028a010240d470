package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var multiSpace = regexp.MustCompile(`\s+`)

// CanonicalName NFC-normalizes, trims, and collapses inner whitespace.
// Case is preserved: district names are compared exactly.
func CanonicalName(s string) string {
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return multiSpace.ReplaceAllString(s, " ")
}

// FoldKey NFC-normalizes a column name without trimming it. Alias keys may
// carry significant trailing whitespace ("CÓDIGO_DE_PROVINCIA ").
func FoldKey(s string) string {
	return norm.NFC.String(s)
}
