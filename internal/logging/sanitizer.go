package logging

import (
	"regexp"
	"strings"
)

// secretExpr matches the credential shapes that can reach the log
// stream: provider API keys, bearer headers, and key/token assignments
// echoed out of configuration or request dumps.
var secretExpr = regexp.MustCompile(strings.Join([]string{
	`sk-[A-Za-z0-9]{20,}`,
	`(?i)bearer\s+[A-Za-z0-9._\-]{16,}`,
	`(?i)(?:api[_-]?key|token|secret)["'\s:=]+[A-Za-z0-9._\-]{16,}`,
}, "|"))

// Sanitizer replaces credential-shaped substrings with a fixed marker
// before log records are written.
type Sanitizer struct {
	expr *regexp.Regexp
	mark string
}

// NewSanitizer creates a sanitizer with the default credential patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{expr: secretExpr, mark: "[REDACTED]"}
}

// Sanitize redacts credentials from a string. Clean input is returned
// unchanged without allocation.
func (s *Sanitizer) Sanitize(in string) string {
	if !s.expr.MatchString(in) {
		return in
	}
	return s.expr.ReplaceAllString(in, s.mark)
}
