package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/ormsift/ormsift/internal/core"
)

// stubReviewer answers by the decision's statement text.
type stubReviewer struct {
	reviews map[string]Review
	err     error
}

func (r *stubReviewer) Review(_ context.Context, _ core.Record, _ core.FixAction, sql string) (Review, error) {
	if r.err != nil {
		return Review{}, r.err
	}
	return r.reviews[sql], nil
}

func TestReviewPlanAcceptedKeepsRemoval(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})
	reviewer := &stubReviewer{reviews: map[string]Review{"SELECT 1;": {Accepted: true}}}

	reviewed := ReviewPlan(context.Background(), records, plan, reviewer, nil)
	out, stats := ApplyFixPlan(records, reviewed)
	if len(out) != 0 || stats.DeletedRecords != 1 {
		t.Errorf("accepted removal not applied: %d records, %+v", len(out), stats)
	}
}

func TestReviewPlanRejectionWithReplacementReplaces(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})
	reviewer := &stubReviewer{reviews: map[string]Review{
		"SELECT 1;": {Accepted: false, Replacement: "SELECT 1 FROM dual;"},
	}}

	reviewed := ReviewPlan(context.Background(), records, plan, reviewer, nil)
	out, _ := ApplyFixPlan(records, reviewed)
	if len(out) != 1 {
		t.Fatal("replacement should keep the record alive")
	}
	want := core.NewLiteral("SELECT 1 FROM dual;")
	if !out[0].SQL.Equal(want) {
		t.Errorf("sql = %+v, want %+v", out[0].SQL, want)
	}
}

func TestReviewPlanRejectionWithoutReplacementVetoes(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})
	reviewer := &stubReviewer{reviews: map[string]Review{"SELECT 1;": {Accepted: false}}}

	reviewed := ReviewPlan(context.Background(), records, plan, reviewer, nil)
	out, stats := ApplyFixPlan(records, reviewed)
	if len(out) != 1 || stats.DeletedRecords != 0 {
		t.Fatalf("vetoed removal still applied: %d records, %+v", len(out), stats)
	}
	if !out[0].SQL.Equal(core.NewLiteral("SELECT 1;")) {
		t.Errorf("original statement lost: %+v", out[0].SQL)
	}
}

func TestReviewPlanRejectedAdditionIsDropped(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 2;"})
	reviewer := &stubReviewer{reviews: map[string]Review{"SELECT 2;": {Accepted: false}}}

	reviewed := ReviewPlan(context.Background(), records, plan, reviewer, nil)
	_, additions := reviewed.Decisions()
	if additions != 0 {
		t.Errorf("rejected addition survived: %d additions", additions)
	}
	out, _ := ApplyFixPlan(records, reviewed)
	if !out[0].SQL.Equal(core.NewLiteral("SELECT 1;")) {
		t.Errorf("sql = %+v", out[0].SQL)
	}
}

func TestReviewPlanAdditionReplacementSubstitutes(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 2;"})
	reviewer := &stubReviewer{reviews: map[string]Review{
		"SELECT 2;": {Accepted: false, Replacement: "SELECT 2 FROM t;"},
	}}

	reviewed := ReviewPlan(context.Background(), records, plan, reviewer, nil)
	out, _ := ApplyFixPlan(records, reviewed)
	stmts := out[0].SQL.Statements()
	if len(stmts) != 2 || stmts[1] != "SELECT 2 FROM t;" {
		t.Errorf("statements = %v", stmts)
	}
}

func TestReviewPlanAcceptedAdditionKept(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 2;"})
	reviewer := &stubReviewer{reviews: map[string]Review{"SELECT 2;": {Accepted: true}}}

	reviewed := ReviewPlan(context.Background(), records, plan, reviewer, nil)
	out, _ := ApplyFixPlan(records, reviewed)
	stmts := out[0].SQL.Statements()
	if len(stmts) != 2 || stmts[1] != "SELECT 2;" {
		t.Errorf("statements = %v", stmts)
	}
}

func TestReviewPlanErrorKeepsDecision(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})
	reviewer := &stubReviewer{err: errors.New("reviewer down")}

	reviewed := ReviewPlan(context.Background(), records, plan, reviewer, nil)
	out, _ := ApplyFixPlan(records, reviewed)
	if len(out) != 0 {
		t.Error("decision should stand when review fails")
	}
}

func TestReviewPlanNilReviewerPassesThrough(t *testing.T) {
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})
	reviewed := ReviewPlan(context.Background(), nil, plan, nil, nil)
	removals, _ := reviewed.Decisions()
	if removals != 1 {
		t.Errorf("plan altered without a reviewer: %d removals", removals)
	}
}
