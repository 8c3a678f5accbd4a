// Package security holds input hygiene for user-supplied board content.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips markup from plain-text fields such as column names and card
// titles. It is safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text removes every HTML element from s and trims surrounding space. Entities
// are decoded once so that "Q&A" round-trips unchanged.
func (s *Sanitizer) Text(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

// TextPtr applies Text to an optional field.
func (s *Sanitizer) TextPtr(in *string) *string {
	if in == nil {
		return nil
	}
	out := s.Text(*in)
	return &out
}

// Labels sanitises each label and drops the ones left empty.
func (s *Sanitizer) Labels(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = s.Text(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
