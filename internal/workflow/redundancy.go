package workflow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/parse"
	"github.com/ormsift/ormsift/internal/reconcile"
	"github.com/ormsift/ormsift/internal/service"
)

// RedundancyStats summarizes the redundancy stage: the fingerprint
// analysis, the generator verdicts, and the fix reconciliation.
type RedundancyStats struct {
	InputRecords      int             `json:"input_records"`
	OutputRecords     int             `json:"output_records"`
	Analysis          AnalysisStats   `json:"analysis"`
	ConfirmedRemovals int             `json:"confirmed_removals"`
	ConfirmedAdds     int             `json:"confirmed_additions"`
	Rejected          int             `json:"rejected_candidates"`
	Degraded          int             `json:"degraded_candidates"`
	GeneratorAttempts int             `json:"generator_attempts"`
	Reconcile         reconcile.Stats `json:"reconcile"`
}

type redundancyVerdict struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason"`
}

// RedundancyStage cross-checks callers of the same ORM method. Fingerprint
// analysis proposes candidates, the generator rules on each, confirmed
// decisions form a fix plan that the reviewer (when configured) audits
// before the reconciliation engine applies it. An unconfirmed or degraded
// candidate changes nothing.
type RedundancyStage struct{}

func (s *RedundancyStage) Name() string         { return core.StageRedundancy }
func (s *RedundancyStage) Kind() core.StageKind { return core.StageKindValidation }

func (s *RedundancyStage) Run(ctx context.Context, env Env, records []core.Record) (StageResult, error) {
	sc := env.tuning(s.Name())
	policy := env.policyFor(sc)
	logger := env.logger()

	candidates, analysis := analyzeRedundancy(records)
	stats := RedundancyStats{InputRecords: len(records), Analysis: analysis}
	logger.Info("fingerprint analysis done",
		"groups", analysis.Groups,
		"redundant", analysis.Redundant,
		"missing", analysis.Missing,
		"new", analysis.NewFingerprints)

	for _, cand := range candidates {
		if cand.Kind == candidateRedundant {
			records[cand.RecordIndex].SQL = markRedundant(records[cand.RecordIndex].SQL, cand.Statement)
		}
	}

	if len(candidates) == 0 {
		stats.OutputRecords = len(records)
		return StageResult{Records: records, Stats: stats}, nil
	}

	op := func(ctx context.Context, cand candidate) (redundancyVerdict, int, error) {
		req := core.GenerateRequest{
			Prompt:      redundancyPrompt(&records[cand.RecordIndex], cand),
			MaxTokens:   env.MaxTokens,
			Temperature: env.Temperature,
		}
		gen, err := service.GenerateValidated(ctx, env.Gen, policy, req,
			parse.RequireFields("confirmed"), sc.MaxReformat)
		if err != nil {
			return redundancyVerdict{}, gen.Attempts, err
		}
		if gen.ValidationFailed {
			return redundancyVerdict{}, gen.Attempts, core.ErrValidationFailed(gen.ValidationReason)
		}
		var verdict redundancyVerdict
		if err := json.Unmarshal(gen.Value, &verdict); err != nil {
			return redundancyVerdict{}, gen.Attempts, core.ErrMalformed(err.Error())
		}
		return verdict, gen.Attempts, nil
	}

	results := service.RunBounded(ctx, candidates, sc.Concurrency, op,
		service.WithProgress(func(done, total int) {
			logger.Debug("redundancy validation progress", "done", done, "total", total)
		}))

	plan := make(core.FixPlan)
	for i, res := range results {
		cand := candidates[i]
		stats.GeneratorAttempts += res.Attempts

		if res.Err != nil {
			if fatalTaskErr(res.Err) {
				return StageResult{}, res.Err
			}
			logger.Warn("candidate verdict degraded",
				"kind", string(cand.Kind), "statement", cand.Statement, "error", res.Err)
			stats.Degraded++
			continue
		}
		if !res.Value.Confirmed {
			stats.Rejected++
			continue
		}

		switch cand.Kind {
		case candidateRedundant:
			plan.Add(core.FixDecision{Key: cand.Key, Action: core.ActionRemoveLiteral, SQL: cand.Statement})
			stats.ConfirmedRemovals++
		case candidateMissing:
			plan.Add(core.FixDecision{Key: cand.Key, Action: core.ActionAddLiteral, SQL: cand.Statement})
			stats.ConfirmedAdds++
		}
	}

	plan = reconcile.ReviewPlan(ctx, records, plan, env.Reviewer, logger)

	out, rstats := reconcile.ApplyFixPlan(records, plan)
	stats.Reconcile = rstats
	stats.OutputRecords = len(out)
	return StageResult{
		Records:  out,
		Stats:    stats,
		Modified: rstats.ModifiedRecords,
		Deleted:  rstats.DeletedRecords,
	}, nil
}

// markRedundant appends the redundant marker to every statement in the
// value matching target, unless already marked.
func markRedundant(v core.SQLValue, target string) core.SQLValue {
	switch v.Kind {
	case core.KindLiteral:
		if core.StripMarker(v.Literal) == target && !strings.Contains(v.Literal, core.RedundantMarker) {
			v.Literal += core.RedundantMarker
		}
		return v
	case core.KindSequence:
		items := make([]core.SQLValue, len(v.Items))
		for i, item := range v.Items {
			items[i] = markRedundant(item, target)
		}
		v.Items = items
		return v
	case core.KindVariantGroup:
		variants := make([]core.Variant, len(v.Variants))
		for i, variant := range v.Variants {
			if core.StripMarker(variant.SQL) == target && !strings.Contains(variant.SQL, core.RedundantMarker) {
				variant.SQL += core.RedundantMarker
			}
			variants[i] = variant
		}
		v.Variants = variants
		return v
	default:
		return v
	}
}
