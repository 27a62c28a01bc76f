package chunker

import (
	"regexp"
	"strings"
)

var (
	refLinkPattern   = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	codeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	underlinePattern = regexp.MustCompile(`_{5,}`)
)

// Clean strips markdown constructs that carry no question-bearing text:
// reference links keep only their label, fenced code blocks and long
// underline rules are removed, and the result is lower-cased. Used for the
// response index only; the reject index keeps the raw markup.
func Clean(text string) string {
	out := refLinkPattern.ReplaceAllString(text, "$1")
	out = codeBlockPattern.ReplaceAllString(out, "")
	out = underlinePattern.ReplaceAllString(out, "")
	return strings.ToLower(out)
}
