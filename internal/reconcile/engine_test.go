package reconcile

import (
	"testing"

	"github.com/ormsift/ormsift/internal/core"
)

func record(orm, caller string, sql core.SQLValue) core.Record {
	return core.Record{
		FunctionName: "fn",
		ORMCode:      orm,
		Caller:       caller,
		SQL:          sql,
	}
}

func planOf(decisions ...core.FixDecision) core.FixPlan {
	plan := make(core.FixPlan)
	for _, d := range decisions {
		plan.Add(d)
	}
	return plan
}

func key(orm, caller string) core.EntityKey {
	return core.EntityKey{ORMCode: orm, Caller: caller}
}

func TestCountInvariant(t *testing.T) {
	records := []core.Record{
		record("a", "c1", core.NewLiteral("SELECT 1;")),
		record("b", "c2", core.NewLiteral("SELECT 2;")),
		record("c", "c3", core.NewSequence([]core.SQLValue{
			core.NewLiteral("SELECT 3;"),
			core.NewLiteral("SELECT 4;"),
		})),
	}
	plan := planOf(
		core.FixDecision{Key: key("a", "c1"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"},
		core.FixDecision{Key: key("c", "c3"), Action: core.ActionRemoveLiteral, SQL: "SELECT 4;"},
	)

	out, stats := ApplyFixPlan(records, plan)
	if len(out)+stats.DeletedRecords != len(records) {
		t.Errorf("count invariant broken: %d out + %d deleted != %d in",
			len(out), stats.DeletedRecords, len(records))
	}
	if stats.DeletedRecords != 1 {
		t.Errorf("expected 1 deleted, got %d", stats.DeletedRecords)
	}
	if stats.ModifiedRecords != 1 {
		t.Errorf("expected 1 modified, got %d", stats.ModifiedRecords)
	}
}

func TestDeleteWhenNothingRemains(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})

	out, stats := ApplyFixPlan(records, plan)
	if len(out) != 0 {
		t.Errorf("record should be deleted, got %+v", out)
	}
	if stats.DeletedRecords != 1 || stats.RemovedStatements != 1 {
		t.Errorf("stats wrong: %+v", stats)
	}
}

func TestRemovalWithReplacement(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(
		core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"},
		core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 2;"},
	)

	out, stats := ApplyFixPlan(records, plan)
	if len(out) != 1 {
		t.Fatalf("record should survive with replacement, got %d records", len(out))
	}
	want := core.NewLiteral("SELECT 2;")
	if !out[0].SQL.Equal(want) {
		t.Errorf("sql = %+v, want %+v", out[0].SQL, want)
	}
	if stats.DeletedRecords != 0 || stats.ModifiedRecords != 1 {
		t.Errorf("stats wrong: %+v", stats)
	}
}

func TestMarkerStrippedMatching(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewSequence([]core.SQLValue{
		core.NewLiteral("SELECT 1;" + core.RedundantMarker),
		core.NewLiteral("SELECT 2;"),
	}))}
	plan := planOf(core.FixDecision{
		Key: key("a", "c"), Action: core.ActionRemoveLiteral,
		SQL: "SELECT 1;" + core.RedundantMarker,
	})

	out, _ := ApplyFixPlan(records, plan)
	if len(out) != 1 {
		t.Fatal("record should survive")
	}
	want := core.NewLiteral("SELECT 2;")
	if !out[0].SQL.Equal(want) {
		t.Errorf("marked statement not removed: %+v", out[0].SQL)
	}
}

func TestSequenceFiltersNestedVariantGroup(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewSequence([]core.SQLValue{
		core.NewLiteral("SELECT 1;"),
		core.NewVariantGroup([]core.Variant{
			{Scenario: "empty filter", SQL: "SELECT * FROM t;"},
			{Scenario: "with filter", SQL: "SELECT * FROM t WHERE x;"},
		}),
	}))}
	plan := planOf(core.FixDecision{
		Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT * FROM t;",
	})

	out, stats := ApplyFixPlan(records, plan)
	if len(out) != 1 || stats.RemovedStatements != 1 {
		t.Fatalf("unexpected outcome: %d records, %+v", len(out), stats)
	}
	sql := out[0].SQL
	if sql.Kind != core.KindSequence || len(sql.Items) != 2 {
		t.Fatalf("sequence shape wrong: %+v", sql)
	}
	group := sql.Items[1]
	if group.Kind != core.KindVariantGroup || len(group.Variants) != 1 || group.Variants[0].Scenario != "with filter" {
		t.Errorf("variant not filtered: %+v", group)
	}
}

func TestVariantGroupEmptiesToDeletion(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewVariantGroup([]core.Variant{
		{Scenario: "only", SQL: "SELECT 1;"},
	}))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})

	out, stats := ApplyFixPlan(records, plan)
	if len(out) != 0 || stats.DeletedRecords != 1 {
		t.Errorf("expected deletion, got %d records, %+v", len(out), stats)
	}
}

func TestVariantGroupLiteralAdditionsGetDefaultScenarios(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewVariantGroup([]core.Variant{
		{Scenario: "gone", SQL: "SELECT 0;"},
	}))}
	plan := planOf(
		core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 0;"},
		core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 1;"},
		core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 2;"},
		core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 3;"},
	)

	out, _ := ApplyFixPlan(records, plan)
	if len(out) != 1 {
		t.Fatal("record should survive")
	}
	sql := out[0].SQL
	if sql.Kind != core.KindVariantGroup || len(sql.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %+v", sql)
	}
	for i, v := range sql.Variants {
		if v.Scenario == "" {
			t.Errorf("variant %d missing generated scenario label", i)
		}
	}
}

func TestSentinelNeverDeleted(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewSentinel(core.NoSQLGenerated))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})

	out, stats := ApplyFixPlan(records, plan)
	if len(out) != 1 || stats.DeletedRecords != 0 {
		t.Fatalf("sentinel record must survive: %d records, %+v", len(out), stats)
	}
	if !out[0].SQL.IsSentinel() {
		t.Errorf("sentinel lost: %+v", out[0].SQL)
	}
}

func TestSentinelWithAdditionsBecomesValue(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewSentinel(core.LackInformation))}
	plan := planOf(core.FixDecision{Key: key("a", "c"), Action: core.ActionAddLiteral, SQL: "SELECT 9;"})

	out, stats := ApplyFixPlan(records, plan)
	if len(out) != 1 || stats.ModifiedRecords != 1 {
		t.Fatalf("unexpected outcome: %d records, %+v", len(out), stats)
	}
	want := core.NewLiteral("SELECT 9;")
	if !out[0].SQL.Equal(want) {
		t.Errorf("sql = %+v, want %+v", out[0].SQL, want)
	}
}

func TestUnknownKeysPassThrough(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	plan := planOf(core.FixDecision{Key: key("x", "y"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"})

	out, stats := ApplyFixPlan(records, plan)
	if len(out) != 1 || stats.ModifiedRecords != 0 || stats.DeletedRecords != 0 {
		t.Errorf("untargeted record disturbed: %d records, %+v", len(out), stats)
	}
}

func TestIdempotence(t *testing.T) {
	records := []core.Record{
		record("a", "c1", core.NewLiteral("SELECT 1;")),
		record("b", "c2", core.NewSequence([]core.SQLValue{
			core.NewLiteral("SELECT 2;"),
			core.NewLiteral("SELECT 3;"),
		})),
		record("d", "c4", core.NewVariantGroup([]core.Variant{
			{Scenario: "s", SQL: "SELECT 4;"},
		})),
	}
	plan := planOf(
		core.FixDecision{Key: key("a", "c1"), Action: core.ActionRemoveLiteral, SQL: "SELECT 1;"},
		core.FixDecision{Key: key("a", "c1"), Action: core.ActionAddLiteral, SQL: "SELECT 10;"},
		core.FixDecision{Key: key("b", "c2"), Action: core.ActionRemoveLiteral, SQL: "SELECT 3;"},
		core.FixDecision{Key: key("d", "c4"), Action: core.ActionAddLiteral, SQL: "SELECT 5;"},
	)

	once, _ := ApplyFixPlan(records, plan)
	twice, stats := ApplyFixPlan(once, plan)

	if len(twice) != len(once) {
		t.Fatalf("second pass changed record count: %d vs %d", len(twice), len(once))
	}
	if stats.ModifiedRecords != 0 || stats.DeletedRecords != 0 || stats.RemovedStatements != 0 || stats.AddedStatements != 0 {
		t.Errorf("second pass should be a no-op: %+v", stats)
	}
	for i := range once {
		if !twice[i].SQL.Equal(once[i].SQL) {
			t.Errorf("record %d changed on second pass:\nonce  %+v\ntwice %+v", i, once[i].SQL, twice[i].SQL)
		}
	}
}

func TestEmptyPlanIsNoOp(t *testing.T) {
	records := []core.Record{record("a", "c", core.NewLiteral("SELECT 1;"))}
	out, stats := ApplyFixPlan(records, core.FixPlan{})
	if len(out) != 1 || stats.ModifiedRecords != 0 {
		t.Errorf("empty plan disturbed records: %+v", stats)
	}
}
