package workflow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/parse"
	"github.com/ormsift/ormsift/internal/service"
)

// controlFlowMarkers are the branching constructs that make a method's SQL
// path-dependent. Matching is substring on the lowercased code.
var controlFlowMarkers = []string{
	"switch ", "if ", "else if", "else {", "case ", "default:",
}

type controlFlowVerdict struct {
	FinalJudgment struct {
		IsCorrect bool   `json:"is_correct"`
		Reason    string `json:"reason"`
	} `json:"final_judgment"`
	VariantsAnalysis struct {
		ExpectedCount int `json:"expected_count"`
		ActualCount   int `json:"actual_count"`
	} `json:"sql_variants_analysis"`
}

// ControlFlowStats summarizes the control-flow stage.
type ControlFlowStats struct {
	InputRecords      int `json:"input_records"`
	OutputRecords     int `json:"output_records"`
	Branching         int `json:"branching_records"`
	Skipped           int `json:"skipped"`
	Passed            int `json:"passed"`
	Regenerated       int `json:"regenerated"`
	Degraded          int `json:"degraded"`
	GeneratorAttempts int `json:"generator_attempts"`
}

// ControlFlowStage checks records whose ORM code branches: each runtime
// path may produce different SQL, so the value must cover every branch.
// When the generator judges the coverage wrong, the SQL is regenerated as a
// variant group. A verdict that cannot be obtained leaves the record
// untouched, which is the conservative reading.
type ControlFlowStage struct{}

func (s *ControlFlowStage) Name() string         { return core.StageControlFlow }
func (s *ControlFlowStage) Kind() core.StageKind { return core.StageKindValidation }

func (s *ControlFlowStage) Run(ctx context.Context, env Env, records []core.Record) (StageResult, error) {
	sc := env.tuning(s.Name())
	policy := env.policyFor(sc)
	logger := env.logger()
	stats := ControlFlowStats{InputRecords: len(records)}

	branching := make([]int, 0, len(records))
	for i := range records {
		if records[i].SQL.IsSentinel() || !hasControlFlow(records[i].ORMCode) {
			stats.Skipped++
			continue
		}
		branching = append(branching, i)
	}
	stats.Branching = len(branching)

	type outcome struct {
		verdict controlFlowVerdict
		newSQL  *core.SQLValue
	}

	op := func(ctx context.Context, idx int) (outcome, int, error) {
		rec := &records[idx]
		req := core.GenerateRequest{
			Prompt:      controlFlowPrompt(rec),
			MaxTokens:   env.MaxTokens,
			Temperature: env.Temperature,
		}
		gen, err := service.GenerateValidated(ctx, env.Gen, policy, req,
			parse.RequireFields("final_judgment"), sc.MaxReformat)
		if err != nil {
			return outcome{}, gen.Attempts, err
		}
		attempts := gen.Attempts
		if gen.ValidationFailed {
			return outcome{}, attempts, core.ErrValidationFailed(gen.ValidationReason)
		}
		var out outcome
		if err := json.Unmarshal(gen.Value, &out.verdict); err != nil {
			return outcome{}, attempts, core.ErrMalformed(err.Error())
		}
		if out.verdict.FinalJudgment.IsCorrect {
			return out, attempts, nil
		}

		regen, err := service.GenerateValidated(ctx, env.Gen, policy,
			core.GenerateRequest{
				Prompt:      regeneratePrompt(rec),
				MaxTokens:   env.MaxTokens,
				Temperature: env.Temperature,
			},
			parse.RequireFields("variants"), sc.MaxReformat)
		attempts += regen.Attempts
		if err != nil {
			if fatalTaskErr(err) {
				return out, attempts, err
			}
			// Rejected but not replaceable; keep the original SQL.
			return out, attempts, nil
		}
		if regen.ValidationFailed {
			return out, attempts, nil
		}
		var value core.SQLValue
		if err := value.UnmarshalJSON(regen.Value); err != nil {
			return out, attempts, nil
		}
		out.newSQL = &value
		return out, attempts, nil
	}

	results := service.RunBounded(ctx, branching, sc.Concurrency, op,
		service.WithProgress(func(done, total int) {
			logger.Debug("control flow progress", "done", done, "total", total)
		}))

	now := env.now()
	for i, res := range results {
		idx := branching[i]
		rec := &records[idx]
		stats.GeneratorAttempts += res.Attempts

		if res.Err != nil {
			if fatalTaskErr(res.Err) {
				return StageResult{}, res.Err
			}
			logger.Warn("control flow check degraded", "function", rec.FunctionName, "error", res.Err)
			stats.Degraded++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Degraded: true, Reason: res.Err.Error(), CheckedAt: now})
			continue
		}

		verdict := res.Value.verdict
		if verdict.FinalJudgment.IsCorrect {
			stats.Passed++
			rec.SetCheck(s.Name(), core.CheckAnnotation{Passed: true, Reason: verdict.FinalJudgment.Reason, CheckedAt: now})
			continue
		}

		ann := core.CheckAnnotation{Passed: false, Reason: verdict.FinalJudgment.Reason, CheckedAt: now}
		if res.Value.newSQL != nil {
			rec.SQL = *res.Value.newSQL
			stats.Regenerated++
		} else {
			ann.Degraded = true
			stats.Degraded++
		}
		rec.SetCheck(s.Name(), ann)
	}

	stats.OutputRecords = len(records)
	return StageResult{Records: records, Stats: stats, Modified: stats.Regenerated}, nil
}

// hasControlFlow reports whether the code contains a branching construct.
func hasControlFlow(code string) bool {
	lower := strings.ToLower(code)
	for _, marker := range controlFlowMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
