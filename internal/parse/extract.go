// Package parse pulls structured values out of free-form generated text.
//
// Generators wrap their answers in prose, markdown fences, or both. Instead
// of per-call-site regex surgery, extraction is an ordered list of
// strategies tried until one yields valid JSON.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ormsift/ormsift/internal/core"
)

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_]*\\s*(.*?)\\s*```")

// Extract returns the first JSON document found in raw text. Strategies, in
// order: the whole text, each fenced code block, and the balanced bracket
// or brace span whose opening delimiter appears earliest. Failure of all
// strategies is a transient malformed-output error so the backoff
// controller can re-generate.
func Extract(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, core.ErrEmptyResponse("generator returned no text")
	}

	if doc, ok := tryJSON(trimmed); ok {
		return doc, nil
	}

	for _, block := range fencedBlockRe.FindAllStringSubmatch(trimmed, -1) {
		if doc, ok := tryJSON(block[1]); ok {
			return doc, nil
		}
	}

	pairs := [][2]byte{{'[', ']'}, {'{', '}'}}
	if brace, bracket := strings.IndexByte(trimmed, '{'), strings.IndexByte(trimmed, '['); brace >= 0 && (bracket < 0 || brace < bracket) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	for _, pair := range pairs {
		if span, ok := balancedSpan(trimmed, pair[0], pair[1]); ok {
			if doc, ok := tryJSON(span); ok {
				return doc, nil
			}
		}
	}

	return nil, core.ErrMalformed("no parseable structure in generated text")
}

// ExtractInto extracts and unmarshals into v. A document that extracts but
// does not fit v's shape is also malformed output.
func ExtractInto(raw string, v any) error {
	doc, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return core.ErrMalformed("extracted document has wrong shape").WithCause(err)
	}
	return nil
}

func tryJSON(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	// Bare scalars are not useful answers; require an object or array.
	if s[0] != '{' && s[0] != '[' {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// balancedSpan returns the substring from the first open delimiter to its
// matching close, tracking nesting and string literals.
func balancedSpan(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
