package workflow

import (
	"context"
	"encoding/json"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/parse"
	"github.com/ormsift/ormsift/internal/service"
)

// SpecialKeywords is the closed set of ORM feature names that may be
// tagged onto a record. Anything the generator proposes outside this list
// is discarded.
var SpecialKeywords = []string{
	"Preload", "Transaction", "Scopes", "FindInBatches", "FirstOrInit",
	"Association", "Locking", "Pluck", "Callbacks", "AutoMigrate",
	"ForeignKey", "References", "NamedQuery", "Hooks", "NamedParameters",
}

type keywordAnswer struct {
	Keywords []string `json:"keywords"`
}

// keywordValidator requires a keywords field holding a string array. The
// allowed set is left open: unknown keywords are dropped by filterKeywords
// rather than spent on reformat rounds.
var keywordValidator = func() parse.Validator {
	shape := parse.RequireFields("keywords")
	list := parse.RequireStringList(nil)
	return func(doc json.RawMessage) parse.Outcome {
		if out := shape(doc); !out.OK {
			return out
		}
		var obj struct {
			Keywords json.RawMessage `json:"keywords"`
		}
		if err := json.Unmarshal(doc, &obj); err != nil {
			return parse.Invalid("expected a JSON object: %v", err)
		}
		return list(obj.Keywords)
	}
}()

// KeywordStage tags each record with the ORM features its code uses, drawn
// from the closed keyword list. Tagging is additive; a failed exchange
// leaves the record untagged rather than degrading it.
type KeywordStage struct{}

func (s *KeywordStage) Name() string         { return core.StageKeywords }
func (s *KeywordStage) Kind() core.StageKind { return core.StageKindTagging }

func (s *KeywordStage) Run(ctx context.Context, env Env, records []core.Record) (StageResult, error) {
	sc := env.tuning(s.Name())
	policy := env.policyFor(sc)
	logger := env.logger()
	stats := CheckStats{InputRecords: len(records), Checked: len(records)}

	indices := make([]int, len(records))
	for i := range records {
		indices[i] = i
	}

	op := func(ctx context.Context, idx int) (service.Generation, int, error) {
		req := core.GenerateRequest{
			Prompt:      keywordPrompt(&records[idx], SpecialKeywords),
			MaxTokens:   env.MaxTokens,
			Temperature: env.Temperature,
		}
		gen, err := service.GenerateValidated(ctx, env.Gen, policy, req,
			keywordValidator, sc.MaxReformat)
		return gen, gen.Attempts, err
	}

	results := service.RunBounded(ctx, indices, sc.Concurrency, op,
		service.WithProgress(func(done, total int) {
			logger.Debug("keyword progress", "done", done, "total", total)
		}))

	tagged := 0
	out := make([]core.Record, 0, len(records))
	now := env.now()
	for i := range records {
		rec := records[i]
		res := results[i]
		stats.GeneratorAttempts += res.Attempts

		if res.Err != nil {
			if fatalTaskErr(res.Err) {
				return StageResult{}, res.Err
			}
			logger.Warn("keyword tagging skipped", "function", rec.FunctionName, "error", res.Err)
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Degraded: true, Reason: res.Err.Error(), CheckedAt: now})
			out = append(out, rec)
			continue
		}

		gen := res.Value
		if gen.ValidationFailed {
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{
				Passed: true, Degraded: true, ValidationFailed: true,
				Reason: gen.ValidationReason, CheckedAt: now,
			})
			out = append(out, rec)
			continue
		}
		var answer keywordAnswer
		if err := json.Unmarshal(gen.Value, &answer); err != nil {
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Degraded: true, Reason: err.Error(), CheckedAt: now})
			out = append(out, rec)
			continue
		}

		kept := filterKeywords(answer.Keywords)
		for _, kw := range kept {
			rec.AddTag(kw)
		}
		if len(kept) > 0 {
			tagged++
		}
		stats.Passed++
		out = append(out, rec)
	}

	stats.OutputRecords = len(out)
	return StageResult{Records: out, Stats: stats, Modified: tagged}, nil
}

// filterKeywords keeps only known keywords, deduplicated, in answer order.
func filterKeywords(proposed []string) []string {
	allowed := make(map[string]struct{}, len(SpecialKeywords))
	for _, kw := range SpecialKeywords {
		allowed[kw] = struct{}{}
	}
	seen := make(map[string]struct{}, len(proposed))
	var out []string
	for _, kw := range proposed {
		if _, ok := allowed[kw]; !ok {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
