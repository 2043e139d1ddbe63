package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/logging"
	"github.com/ormsift/ormsift/internal/parse"
	"github.com/ormsift/ormsift/internal/service"
)

// Review is a second opinion on one fix decision. Accepted confirms it. A
// rejection carrying a replacement substitutes the replacement statement:
// for a removal the original still goes and the replacement is added, for
// an addition the replacement is added instead. A rejection without a
// replacement vetoes the decision.
type Review struct {
	Accepted    bool   `json:"accepted"`
	Replacement string `json:"replacement,omitempty"`
}

// Reviewer provides reviews for remove and add decisions.
type Reviewer interface {
	Review(ctx context.Context, rec core.Record, action core.FixAction, sql string) (Review, error)
}

// ReviewPlan runs every removal and literal addition in the plan past the
// reviewer and returns the adjusted plan. Variant-group additions pass
// through unreviewed. A review error keeps the decision as emitted; the
// validation stage already vouched for it.
func ReviewPlan(ctx context.Context, records []core.Record, plan core.FixPlan, reviewer Reviewer, logger *logging.Logger) core.FixPlan {
	if reviewer == nil {
		return plan
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	byKey := make(map[core.EntityKey]core.Record, len(records))
	for _, rec := range records {
		byKey[rec.Key()] = rec
	}

	reviewed := make(core.FixPlan, len(plan))
	for key, set := range plan {
		rec, known := byKey[key]

		for _, add := range set.Additions {
			if add.Action != core.ActionAddLiteral || !known {
				reviewed.Add(add)
				continue
			}

			review, err := reviewer.Review(ctx, rec, core.ActionAddLiteral, add.SQL)
			if err != nil {
				logger.Warn("fix review failed, keeping decision", "error", err)
				reviewed.Add(add)
				continue
			}

			switch {
			case review.Accepted:
				reviewed.Add(add)
			case strings.TrimSpace(review.Replacement) != "":
				reviewed.Add(core.FixDecision{Key: key, Action: core.ActionAddLiteral, SQL: review.Replacement})
			default:
				// Rejected outright: the statement is not added.
			}
		}

		for target := range set.Removals {
			if !known {
				reviewed.Add(core.FixDecision{Key: key, Action: core.ActionRemoveLiteral, SQL: target})
				continue
			}

			review, err := reviewer.Review(ctx, rec, core.ActionRemoveLiteral, target)
			if err != nil {
				logger.Warn("fix review failed, keeping decision", "error", err)
				reviewed.Add(core.FixDecision{Key: key, Action: core.ActionRemoveLiteral, SQL: target})
				continue
			}

			switch {
			case review.Accepted:
				reviewed.Add(core.FixDecision{Key: key, Action: core.ActionRemoveLiteral, SQL: target})
			case strings.TrimSpace(review.Replacement) != "":
				reviewed.Add(core.FixDecision{Key: key, Action: core.ActionRemoveLiteral, SQL: target})
				reviewed.Add(core.FixDecision{Key: key, Action: core.ActionAddLiteral, SQL: review.Replacement})
			default:
				// Rejected outright: the original statement stays.
			}
		}
	}
	return reviewed
}

// LLMReviewer asks the generator whether a removal is justified.
type LLMReviewer struct {
	gen         core.Generator
	policy      *service.RetryPolicy
	maxReformat int
}

// NewLLMReviewer creates a generator-backed reviewer.
func NewLLMReviewer(gen core.Generator, policy *service.RetryPolicy, maxReformat int) *LLMReviewer {
	return &LLMReviewer{gen: gen, policy: policy, maxReformat: maxReformat}
}

// Review asks whether the proposed change to the record's SQL is correct.
func (r *LLMReviewer) Review(ctx context.Context, rec core.Record, action core.FixAction, sql string) (Review, error) {
	req := core.GenerateRequest{Prompt: reviewPrompt(rec, action, sql)}
	validator := parse.RequireFields("accepted")

	out, err := service.GenerateValidated(ctx, r.gen, r.policy, req, validator, r.maxReformat)
	if err != nil {
		return Review{}, err
	}
	if out.ValidationFailed {
		return Review{}, core.ErrValidationFailed(
			fmt.Sprintf("review response never validated: %s", out.ValidationReason))
	}

	var review Review
	if err := json.Unmarshal(out.Value, &review); err != nil {
		return Review{}, core.ErrValidationFailed(fmt.Sprintf("undecodable review: %v", err))
	}
	return review, nil
}

func reviewPrompt(rec core.Record, action core.FixAction, sql string) string {
	var b strings.Builder
	if action == core.ActionAddLiteral {
		b.WriteString("A redundancy check proposed adding one SQL statement to those attributed to an ORM method.\n")
		b.WriteString("Decide whether the addition is justified given the code.\n\n")
	} else {
		b.WriteString("A redundancy check flagged one SQL statement attributed to an ORM method for removal.\n")
		b.WriteString("Decide whether the removal is justified given the code.\n\n")
	}
	fmt.Fprintf(&b, "ORM method:\n%s\n\n", rec.ORMCode)
	fmt.Fprintf(&b, "Caller:\n%s\n\n", rec.Caller)
	fmt.Fprintf(&b, "All attributed SQL:\n%s\n\n", strings.Join(rec.SQL.Statements(), "\n"))
	if action == core.ActionAddLiteral {
		fmt.Fprintf(&b, "Statement proposed for addition:\n%s\n\n", sql)
		b.WriteString("Answer with JSON only: {\"accepted\": true|false, \"replacement\": \"<corrected SQL or empty>\"}.\n")
		b.WriteString("Set accepted=true when the code really produces this statement. ")
		b.WriteString("If a corrected statement should be added instead, set accepted=false and give the replacement.")
	} else {
		fmt.Fprintf(&b, "Statement flagged for removal:\n%s\n\n", sql)
		b.WriteString("Answer with JSON only: {\"accepted\": true|false, \"replacement\": \"<corrected SQL or empty>\"}.\n")
		b.WriteString("Set accepted=true when the statement is redundant or wrong for this code. ")
		b.WriteString("If the statement is wrong but a corrected statement should take its place, set accepted=false and give the replacement.")
	}
	return b.String()
}

var _ Reviewer = (*LLMReviewer)(nil)
