package workflow

import (
	"context"
	"encoding/json"

	"github.com/ormsift/ormsift/internal/config"
	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/parse"
	"github.com/ormsift/ormsift/internal/service"
)

// TagIncorrectSQL marks records whose SQL the correctness check rejected.
const TagIncorrectSQL = "incorrect_sql"

type correctnessVerdict struct {
	IsCorrect bool   `json:"is_correct"`
	Reason    string `json:"reason"`
}

// CorrectnessStage asks the generator whether each record's SQL matches
// what its ORM code executes. Rejected records stay in the working set with
// a failed check and a tag; only the reconciliation engine removes records.
// Sentinel-valued records have nothing to judge and are skipped.
type CorrectnessStage struct{}

func (s *CorrectnessStage) Name() string         { return core.StageCorrectness }
func (s *CorrectnessStage) Kind() core.StageKind { return core.StageKindCheck }

func (s *CorrectnessStage) Run(ctx context.Context, env Env, records []core.Record) (StageResult, error) {
	sc := env.tuning(s.Name())
	policy := env.policyFor(sc)
	logger := env.logger()
	stats := CheckStats{InputRecords: len(records)}

	checkable := make([]int, 0, len(records))
	for i := range records {
		if records[i].SQL.IsSentinel() {
			stats.Skipped++
			continue
		}
		checkable = append(checkable, i)
	}
	stats.Checked = len(checkable)

	op := func(ctx context.Context, idx int) (service.Generation, int, error) {
		req := core.GenerateRequest{
			Prompt:      correctnessPrompt(&records[idx]),
			MaxTokens:   env.MaxTokens,
			Temperature: env.Temperature,
		}
		gen, err := service.GenerateValidated(ctx, env.Gen, policy, req,
			parse.RequireFields("is_correct"), sc.MaxReformat)
		return gen, gen.Attempts, err
	}

	results := service.RunBounded(ctx, checkable, sc.Concurrency, op,
		service.WithProgress(func(done, total int) {
			logger.Debug("correctness progress", "done", done, "total", total)
		}))

	out := make([]core.Record, 0, len(records))
	now := env.now()
	next := 0
	for i := range records {
		rec := records[i]
		if next >= len(checkable) || checkable[next] != i {
			out = append(out, rec)
			continue
		}
		res := results[next]
		next++
		stats.GeneratorAttempts += res.Attempts

		if res.Err != nil {
			if fatalTaskErr(res.Err) {
				return StageResult{}, res.Err
			}
			logger.Warn("correctness check degraded", "function", rec.FunctionName, "error", res.Err)
			if sc.OnError == config.OnErrorDrop {
				stats.Dropped++
				continue
			}
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Degraded: true, Reason: res.Err.Error(), CheckedAt: now})
			out = append(out, rec)
			continue
		}

		gen := res.Value
		var verdict correctnessVerdict
		if gen.ValidationFailed {
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{
				Passed: true, Degraded: true, ValidationFailed: true,
				Reason: gen.ValidationReason, CheckedAt: now,
			})
			out = append(out, rec)
			continue
		}
		if err := json.Unmarshal(gen.Value, &verdict); err != nil {
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Degraded: true, Reason: err.Error(), CheckedAt: now})
			out = append(out, rec)
			continue
		}

		if verdict.IsCorrect {
			stats.Passed++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Reason: verdict.Reason, CheckedAt: now})
		} else {
			stats.Failed++
			rec.AddTag(TagIncorrectSQL)
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: false, Reason: verdict.Reason, CheckedAt: now})
		}
		out = append(out, rec)
	}

	stats.OutputRecords = len(out)
	return StageResult{Records: out, Stats: stats, Modified: stats.Failed, Deleted: stats.Dropped}, nil
}
