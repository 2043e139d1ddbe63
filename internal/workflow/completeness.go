package workflow

import (
	"context"
	"encoding/json"

	"github.com/ormsift/ormsift/internal/config"
	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/parse"
	"github.com/ormsift/ormsift/internal/service"
)

// CheckStats summarizes one verdict-producing stage.
type CheckStats struct {
	InputRecords      int `json:"input_records"`
	OutputRecords     int `json:"output_records"`
	Checked           int `json:"checked"`
	Skipped           int `json:"skipped"`
	Passed            int `json:"passed"`
	Failed            int `json:"failed"`
	Degraded          int `json:"degraded"`
	Dropped           int `json:"dropped"`
	GeneratorAttempts int `json:"generator_attempts"`
}

type completenessVerdict struct {
	IsComplete bool   `json:"is_complete"`
	Reason     string `json:"reason"`
}

// CompletenessStage asks the generator whether each record's ORM code plus
// caller context suffices to derive its SQL. Incomplete records keep their
// place in the working set but their SQL becomes the lack-information
// sentinel. Records already holding the no-SQL sentinel are skipped.
type CompletenessStage struct{}

func (s *CompletenessStage) Name() string         { return core.StageCompleteness }
func (s *CompletenessStage) Kind() core.StageKind { return core.StageKindCheck }

func (s *CompletenessStage) Run(ctx context.Context, env Env, records []core.Record) (StageResult, error) {
	sc := env.tuning(s.Name())
	policy := env.policyFor(sc)
	logger := env.logger()
	stats := CheckStats{InputRecords: len(records)}

	checkable := make([]int, 0, len(records))
	for i := range records {
		if records[i].SQL.Kind == core.KindSentinel && records[i].SQL.Sentinel == core.NoSQLGenerated {
			stats.Skipped++
			continue
		}
		checkable = append(checkable, i)
	}
	stats.Checked = len(checkable)

	op := func(ctx context.Context, idx int) (service.Generation, int, error) {
		req := core.GenerateRequest{
			Prompt:      completenessPrompt(&records[idx]),
			MaxTokens:   env.MaxTokens,
			Temperature: env.Temperature,
		}
		gen, err := service.GenerateValidated(ctx, env.Gen, policy, req,
			parse.RequireFields("is_complete"), sc.MaxReformat)
		return gen, gen.Attempts, err
	}

	results := service.RunBounded(ctx, checkable, sc.Concurrency, op,
		service.WithProgress(func(done, total int) {
			logger.Debug("completeness progress", "done", done, "total", total)
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
			logger.Warn("completeness check degraded", "function", rec.FunctionName, "error", res.Err)
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
		if gen.ValidationFailed {
			// Parsed but never matched the contract; the conservative verdict
			// is complete.
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{
				Passed: true, Degraded: true, ValidationFailed: true,
				Reason: gen.ValidationReason, CheckedAt: now,
			})
			out = append(out, rec)
			continue
		}

		var verdict completenessVerdict
		if err := json.Unmarshal(gen.Value, &verdict); err != nil {
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Degraded: true, Reason: err.Error(), CheckedAt: now})
			out = append(out, rec)
			continue
		}

		if verdict.IsComplete {
			stats.Passed++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Reason: verdict.Reason, CheckedAt: now})
		} else {
			stats.Failed++
			rec.SQL = core.NewSentinel(core.LackInformation)
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: false, Reason: verdict.Reason, CheckedAt: now})
		}
		out = append(out, rec)
	}

	stats.OutputRecords = len(out)
	return StageResult{Records: out, Stats: stats, Modified: stats.Failed, Deleted: stats.Dropped}, nil
}
