package content

import (
	"regexp"
	"strings"
)

// MaxSanitizedChars bounds the text handed to the planner for one page.
const MaxSanitizedChars = 2000

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleBlock  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	htmlComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Sanitize removes script and style blocks and comments from raw HTML
// without leaving a gap, keeps every other tag, collapses whitespace and truncates the result to MaxSanitizedChars runes.
// It is a best-effort textual cleanup, not a parser: the output is only ever
// pattern-matched, never rendered.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	out := scriptBlock.ReplaceAllString(html, "")
	out = styleBlock.ReplaceAllString(out, "")
	out = htmlComment.ReplaceAllString(out, "")
	out = strings.TrimSpace(whitespace.ReplaceAllString(out, " "))
	return truncateRunes(out, MaxSanitizedChars)
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
