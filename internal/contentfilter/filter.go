// Package contentfilter detects advertisement and solicitation content in
// request text. Flagged keywords still get search results, but are excluded
// from the trending board and raise an admin alert.
package contentfilter

import (
	"regexp"
	"strings"
)

// builtin patterns: mentions, links, bare domains, e-mail addresses.
var builtin = []*regexp.Regexp{
	regexp.MustCompile(`@\w+`),
	regexp.MustCompile(`https?://`),
	regexp.MustCompile(`t\.me/`),
	regexp.MustCompile(`\.(com|net|org)\b`),
	regexp.MustCompile(`[\w.+-]+@[a-z0-9-]+(\.[a-z0-9-]+){1,2}`),
	regexp.MustCompile(`^(?:[a-z0-9-]{1,63}\.)+[a-z]{2,}$`),
}

// Filter matches text against the builtin patterns plus a configured
// blocked-phrase list. Safe for concurrent use; all state is immutable
// after construction.
type Filter struct {
	phrases []string
}

// New builds a Filter with extra operator-curated blocked phrases,
// matched as lowercase substrings.
func New(phrases []string) *Filter {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Filter{phrases: lowered}
}

// Flagged reports whether the text contains advertisement content.
func (f *Filter) Flagged(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, re := range builtin {
		if re.MatchString(lower) {
			return true
		}
	}
	for _, p := range f.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
