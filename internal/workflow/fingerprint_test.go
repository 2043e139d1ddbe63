package workflow

import (
	"testing"

	"github.com/ormsift/ormsift/internal/core"
)

func TestFingerprintNormalizes(t *testing.T) {
	a := Fingerprint("SELECT * FROM users WHERE name = 'alice' AND age > 30")
	b := Fingerprint("select *  from users\nwhere name = 'bob' and age > 42")
	if a != b {
		t.Errorf("fingerprints differ:\n%q\n%q", a, b)
	}
	if a == Fingerprint("SELECT * FROM accounts WHERE name = 'alice'") {
		t.Error("different tables share a fingerprint")
	}
}

func TestFingerprintStripsMarker(t *testing.T) {
	plain := Fingerprint("DELETE FROM sessions WHERE id = 1")
	marked := Fingerprint("DELETE FROM sessions WHERE id = 1" + core.RedundantMarker)
	if plain != marked {
		t.Errorf("marker changed fingerprint: %q vs %q", plain, marked)
	}
}

func TestFingerprintQuotedLiterals(t *testing.T) {
	a := Fingerprint(`UPDATE t SET v = 'it''s' WHERE k = "x"`)
	if a == "" {
		t.Fatal("empty fingerprint")
	}
	b := Fingerprint(`UPDATE t SET v = 'other' WHERE k = "y"`)
	if a != b {
		t.Errorf("quoted literals not normalized:\n%q\n%q", a, b)
	}
}

func groupRecord(fn, ormCode, caller string, stmts ...string) core.Record {
	items := make([]core.SQLValue, 0, len(stmts))
	for _, s := range stmts {
		items = append(items, core.NewLiteral(s))
	}
	return core.Record{FunctionName: fn, ORMCode: ormCode, Caller: caller, SQL: core.NewSequence(items)}
}

func TestAnalyzeRedundancyProperSubset(t *testing.T) {
	orm := "func (s *store) Get(id int) {...}"
	records := []core.Record{
		groupRecord("Get", orm, "callerA",
			"SELECT * FROM items WHERE id = 1",
			"SELECT * FROM item_tags WHERE item_id = 1"),
		groupRecord("Get", orm, "callerB",
			"SELECT * FROM items WHERE id = 2"),
	}

	candidates, stats := analyzeRedundancy(records)
	if stats.Groups != 1 {
		t.Fatalf("Groups = %d, want 1", stats.Groups)
	}
	if stats.Redundant != 1 {
		t.Fatalf("Redundant = %d, want 1; candidates: %+v", stats.Redundant, candidates)
	}
	if stats.Missing != 1 {
		t.Fatalf("Missing = %d, want 1", stats.Missing)
	}

	var red, miss *candidate
	for i := range candidates {
		switch candidates[i].Kind {
		case candidateRedundant:
			red = &candidates[i]
		case candidateMissing:
			miss = &candidates[i]
		}
	}
	if red == nil || red.Key.Caller != "callerB" {
		t.Errorf("redundant candidate should target callerB: %+v", red)
	}
	if miss == nil || miss.Key.Caller != "callerB" || miss.Statement != "SELECT * FROM item_tags WHERE item_id = 1" {
		t.Errorf("missing candidate wrong: %+v", miss)
	}
}

func TestAnalyzeRedundancyDivergentCallerNotRedundant(t *testing.T) {
	orm := "func (s *store) Query() {...}"
	records := []core.Record{
		groupRecord("Query", orm, "callerA",
			"SELECT a FROM t1",
			"SELECT b FROM t2"),
		groupRecord("Query", orm, "callerB",
			"SELECT a FROM t1",
			"SELECT c FROM t3"),
	}

	_, stats := analyzeRedundancy(records)
	if stats.Redundant != 0 {
		t.Errorf("Redundant = %d, want 0 (not a proper subset)", stats.Redundant)
	}
	if stats.Missing != 1 {
		t.Errorf("Missing = %d, want 1", stats.Missing)
	}
	if stats.NewFingerprints != 1 {
		t.Errorf("NewFingerprints = %d, want 1", stats.NewFingerprints)
	}
}

func TestAnalyzeRedundancySkipsSingletonsAndSentinels(t *testing.T) {
	records := []core.Record{
		groupRecord("One", "orm1", "c1", "SELECT 1"),
		{FunctionName: "Two", ORMCode: "orm2", Caller: "c2", SQL: core.NewSentinel(core.NoSQLGenerated)},
		{FunctionName: "Three", ORMCode: "orm2", Caller: "c3", SQL: core.NewSentinel(core.NoSQLGenerated)},
	}
	candidates, stats := analyzeRedundancy(records)
	if len(candidates) != 0 || stats.Groups != 0 {
		t.Errorf("expected no analysis, got %d candidates, %d groups", len(candidates), stats.Groups)
	}
}

func TestHasControlFlow(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"switch kind {\ncase 1:\n}", true},
		{"if err != nil { return }", true},
		{"db.Find(&rows)", false},
		{"x := shift()", false}, // "if " must be a standalone token
	}
	for _, tc := range cases {
		if got := hasControlFlow(tc.code); got != tc.want {
			t.Errorf("hasControlFlow(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
