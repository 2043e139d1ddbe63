package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/parse"
)

// scriptedGenerator replays canned answers in order; an empty slot means
// the call fails with a transient error.
type scriptedGenerator struct {
	answers []string
	calls   int
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, req core.GenerateRequest) (string, error) {
	g.prompts = append(g.prompts, req.Prompt)
	if g.calls >= len(g.answers) {
		return "", core.ErrEmptyResponse("script exhausted")
	}
	a := g.answers[g.calls]
	g.calls++
	if a == "" {
		return "", core.ErrConnection("connection reset")
	}
	return a, nil
}

func (g *scriptedGenerator) Ping(context.Context) error { return nil }

func TestGenerateValidatedHappyPath(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{`{"status": true}`}}
	validator := parse.RequireFields("status")

	out, err := GenerateValidated(context.Background(), gen, fastPolicy(3), core.GenerateRequest{Prompt: "check"}, validator, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ValidationFailed {
		t.Error("validation should pass")
	}
	if out.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", out.Attempts)
	}
	var doc map[string]bool
	if err := json.Unmarshal(out.Value, &doc); err != nil || !doc["status"] {
		t.Errorf("unexpected value %s", out.Value)
	}
}

func TestGenerateValidatedRetriesTransientThenSucceeds(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{"", "", `{"ok": 1}`}}

	out, err := GenerateValidated(context.Background(), gen, fastPolicy(5), core.GenerateRequest{Prompt: "p"}, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts)
	}
}

func TestGenerateValidatedUnparseableIsRetried(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{"no structure here at all", `{"fixed": true}`}}

	out, err := GenerateValidated(context.Background(), gen, fastPolicy(5), core.GenerateRequest{Prompt: "p"}, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", out.Attempts)
	}
}

func TestGenerateValidatedReformatLoop(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{
		`{"wrong": 1}`,
		`{"wrong": 2}`,
		`{"status": "done"}`,
	}}
	validator := parse.RequireFields("status")

	out, err := GenerateValidated(context.Background(), gen, fastPolicy(3), core.GenerateRequest{Prompt: "original ask"}, validator, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ValidationFailed {
		t.Errorf("expected the third answer to validate: %s", out.ValidationReason)
	}
	if gen.calls != 3 {
		t.Errorf("expected 3 generator calls, got %d", gen.calls)
	}

	// Reformat prompts carry the original request, the bad answer, and the
	// validation error.
	second := gen.prompts[1]
	for _, want := range []string{"original ask", `{"wrong": 1}`, "status"} {
		if !strings.Contains(second, want) {
			t.Errorf("reformat prompt missing %q:\n%s", want, second)
		}
	}
}

func TestGenerateValidatedReformatExhaustionReturnsLastValue(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{
		`{"wrong": 1}`,
		`{"wrong": 2}`,
		`{"wrong": 3}`,
	}}
	validator := parse.RequireFields("status")

	out, err := GenerateValidated(context.Background(), gen, fastPolicy(3), core.GenerateRequest{Prompt: "p"}, validator, 2)
	if err != nil {
		t.Fatalf("exhausted reformatting is not an error: %v", err)
	}
	if !out.ValidationFailed {
		t.Fatal("expected ValidationFailed")
	}
	if out.ValidationReason == "" {
		t.Error("expected a validation reason")
	}
	if !strings.Contains(string(out.Value), `"wrong": 3`) {
		t.Errorf("expected the last parsed value, got %s", out.Value)
	}
	if gen.calls != 3 {
		t.Errorf("expected 1 original + 2 reformat calls, got %d", gen.calls)
	}
}

func TestGenerateValidatedGeneratorExhaustionPropagates(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{"", "", ""}}

	_, err := GenerateValidated(context.Background(), gen, fastPolicy(3), core.GenerateRequest{Prompt: "p"}, nil, 0)
	if !IsRetryExhausted(err) {
		t.Errorf("expected retry exhaustion, got %v", err)
	}
}

// credentialRejectingGenerator answers once, then fails like a provider
// rejecting the API key.
type credentialRejectingGenerator struct {
	calls int
}

func (g *credentialRejectingGenerator) Generate(context.Context, core.GenerateRequest) (string, error) {
	g.calls++
	if g.calls == 1 {
		return `{"wrong": 1}`, nil
	}
	return "", core.ErrConfig(core.CodeInvalidConfig, "provider rejected credentials")
}

func (g *credentialRejectingGenerator) Ping(context.Context) error { return nil }

func TestGenerateValidatedReformatFatalPropagates(t *testing.T) {
	gen := &credentialRejectingGenerator{}
	validator := parse.RequireFields("status")

	out, err := GenerateValidated(context.Background(), gen, fastPolicy(3), core.GenerateRequest{Prompt: "p"}, validator, 2)
	if err == nil {
		t.Fatalf("fatal reformat failure should propagate, got value %s", out.Value)
	}
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Category != core.ErrCatConfig {
		t.Errorf("error = %v, want config failure", err)
	}
	if out.ValidationFailed {
		t.Error("a fatal failure must not be reported as validation exhaustion")
	}
}
