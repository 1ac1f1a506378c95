package resolver

import (
	"regexp"
	"strings"
)

var (
	featPattern    = regexp.MustCompile(`(?i)\((feat\.|ft\.|featuring)[^)]*\)`)
	bracketPattern = regexp.MustCompile(`\[[^\]]*\]`)
	parenPattern   = regexp.MustCompile(`\([^)]*\)`)
)

// BuildQuery assembles a cleaned search query from two parts. Featuring
// credits and parenthesized noise hurt recall on the search backend, so they
// are stripped before the query goes out.
func BuildQuery(first, second string) string {
	query := strings.TrimSpace(first + " " + second)
	query = featPattern.ReplaceAllString(query, "")
	query = bracketPattern.ReplaceAllString(query, "")
	query = parenPattern.ReplaceAllString(query, "")
	return strings.Join(strings.Fields(query), " ")
}
