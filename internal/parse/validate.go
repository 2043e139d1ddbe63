package parse

import (
	"encoding/json"
	"fmt"
)

// Outcome is the result of validating an extracted value.
type Outcome struct {
	OK     bool
	Reason string
}

// Valid is the passing outcome.
func Valid() Outcome {
	return Outcome{OK: true}
}

// Invalid creates a failing outcome with a reason the reformat prompt can
// echo back to the generator.
func Invalid(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

// Validator checks an extracted JSON document against a caller contract.
type Validator func(doc json.RawMessage) Outcome

// RequireFields builds a validator that checks an object carries the named
// keys.
func RequireFields(fields ...string) Validator {
	return func(doc json.RawMessage) Outcome {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return Invalid("expected a JSON object: %v", err)
		}
		for _, f := range fields {
			if _, ok := obj[f]; !ok {
				return Invalid("missing required field %q", f)
			}
		}
		return Valid()
	}
}

// RequireStringList builds a validator that checks for a non-nil array of
// strings, optionally restricted to an allowed set.
func RequireStringList(allowed []string) Validator {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = struct{}{}
	}
	return func(doc json.RawMessage) Outcome {
		var items []string
		if err := json.Unmarshal(doc, &items); err != nil {
			return Invalid("expected a JSON array of strings: %v", err)
		}
		if len(allowedSet) == 0 {
			return Valid()
		}
		for _, item := range items {
			if _, ok := allowedSet[item]; !ok {
				return Invalid("unknown value %q", item)
			}
		}
		return Valid()
	}
}
