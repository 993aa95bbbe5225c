package bridge

import (
	"regexp"
	"strings"
)

// mentionFilter decides whether a message addresses the bot and removes
// the addressing token from its text.
type mentionFilter struct {
	token   string
	require bool
	strip   *regexp.Regexp
}

func newMentionFilter(token string, require bool) mentionFilter {
	f := mentionFilter{token: token, require: require}
	if token != "" {
		f.strip = regexp.MustCompile(regexp.QuoteMeta(token) + `\s*`)
	}
	return f
}

// Addressed reports whether text should be handled.
func (f mentionFilter) Addressed(text string) bool {
	if !f.require {
		return true
	}
	return f.token != "" && strings.Contains(text, f.token)
}

// Clean strips every occurrence of the token and surrounding whitespace.
func (f mentionFilter) Clean(text string) string {
	if f.strip != nil {
		text = f.strip.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
