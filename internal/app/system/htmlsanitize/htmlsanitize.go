// Package htmlsanitize cleans user-supplied text before it is stored.
// Feedback messages are reduced to plain text; project descriptions keep
// a small set of formatting tags.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictOnce sync.Once
	strict     *bluemonday.Policy

	richOnce sync.Once
	rich     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

func richPolicy() *bluemonday.Policy {
	richOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("p", "br", "strong", "b", "em", "i", "u", "code", "pre", "blockquote", "ul", "ol", "li")
		p.AllowAttrs("href").OnElements("a")
		p.AllowURLSchemes("https", "mailto")
		p.RequireNoFollowOnLinks(true)
		p.RequireParseableURLs(true)
		rich = p
	})
	return rich
}

// PlainText strips every tag and returns trimmed text with entities decoded.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy().Sanitize(s)))
}

// Sanitize keeps basic formatting and safe links and drops everything else.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(richPolicy().Sanitize(s))
}
