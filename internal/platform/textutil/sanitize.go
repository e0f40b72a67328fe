package textutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup from staff supplied text such as order notes and
// article descriptions. The result is plain text: tags are removed and
// entities decoded again, so "Fish & Chips" survives unchanged.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a sanitizer backed by bluemonday's strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText removes all markup and trims surrounding whitespace.
func (s *Sanitizer) PlainText(value string) string {
	if s == nil || s.policy == nil {
		return strings.TrimSpace(value)
	}
	cleaned := s.policy.Sanitize(value)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
