package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/parse"
)

// Generation is one validated generator exchange. When ValidationFailed is
// set the Value is the last parsed-but-invalid document; callers decide
// whether that is fatal for their stage.
type Generation struct {
	Raw              string
	Value            json.RawMessage
	Attempts         int
	ValidationFailed bool
	ValidationReason string
}

// GenerateValidated calls the opaque generator through the retry policy,
// extracts a structured value from the raw text, and checks it against the
// validator. Unparseable output is transient and retried by the policy; a
// value that parses but fails the contract drives the reformat loop: the
// generator is re-asked with the original request, its invalid answer, and
// the validation error, up to maxReformat extra rounds.
func GenerateValidated(ctx context.Context, gen core.Generator, policy *RetryPolicy, req core.GenerateRequest, validator parse.Validator, maxReformat int) (Generation, error) {
	out := Generation{}

	generate := func(ctx context.Context, r core.GenerateRequest) (string, json.RawMessage, int, error) {
		var raw string
		var doc json.RawMessage
		attempts, err := policy.Do(ctx, func(ctx context.Context) error {
			text, genErr := gen.Generate(ctx, r)
			if genErr != nil {
				return genErr
			}
			extracted, extErr := parse.Extract(text)
			if extErr != nil {
				return extErr
			}
			raw = text
			doc = extracted
			return nil
		})
		return raw, doc, attempts, err
	}

	raw, doc, attempts, err := generate(ctx, req)
	out.Attempts = attempts
	if err != nil {
		return out, err
	}
	out.Raw = raw
	out.Value = doc

	if validator == nil {
		return out, nil
	}

	outcome := validator(doc)
	for round := 0; !outcome.OK && round < maxReformat; round++ {
		reformatReq := req
		reformatReq.Prompt = reformatPrompt(req.Prompt, raw, outcome.Reason)

		raw, doc, attempts, err = generate(ctx, reformatReq)
		out.Attempts += attempts
		if err != nil {
			if !IsRetryExhausted(err) {
				// Cancelled or failed fatally; a stale answer must not mask
				// that.
				return out, err
			}
			// Transient exhaustion: the previous parsed value is still the
			// best answer we have.
			out.ValidationFailed = true
			out.ValidationReason = outcome.Reason
			return out, nil
		}
		out.Raw = raw
		out.Value = doc
		outcome = validator(doc)
	}

	if !outcome.OK {
		out.ValidationFailed = true
		out.ValidationReason = outcome.Reason
	}
	return out, nil
}

// reformatPrompt echoes the original request, the invalid response, and the
// specific validation error back to the generator.
func reformatPrompt(original, invalid, reason string) string {
	return fmt.Sprintf(
		"Your previous answer did not satisfy the required format.\n\n"+
			"Original request:\n%s\n\n"+
			"Your answer:\n%s\n\n"+
			"Problem: %s\n\n"+
			"Answer again with only the corrected structure.",
		original, invalid, reason)
}
