package core

import (
	"encoding/json"
	"testing"
)

func TestSQLValue_UnmarshalString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind SQLKind
	}{
		{"plain literal", `"SELECT * FROM users;"`, KindLiteral},
		{"no sql sentinel", `"<NO SQL GENERATE>"`, KindSentinel},
		{"lack info sentinel", `"<LACK INFORMATION>"`, KindSentinel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v SQLValue
			if err := json.Unmarshal([]byte(tt.input), &v); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if v.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", v.Kind, tt.wantKind)
			}
		})
	}
}

func TestSQLValue_UnmarshalVariantGroup(t *testing.T) {
	input := `{"type":"param_dependent","variants":[{"scenario":"id set","sql":"SELECT 1;"},{"scenario":"id unset","sql":"SELECT 2;"}]}`

	var v SQLValue
	if err := json.Unmarshal([]byte(input), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.Kind != KindVariantGroup {
		t.Fatalf("Kind = %q, want %q", v.Kind, KindVariantGroup)
	}
	if len(v.Variants) != 2 {
		t.Errorf("len(Variants) = %d, want 2", len(v.Variants))
	}
}

func TestSQLValue_UnmarshalSequence(t *testing.T) {
	input := `["SELECT 1;",{"type":"param_dependent","variants":[{"scenario":"s","sql":"SELECT 2;"}]},"SELECT 3;"]`

	var v SQLValue
	if err := json.Unmarshal([]byte(input), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.Kind != KindSequence {
		t.Fatalf("Kind = %q, want %q", v.Kind, KindSequence)
	}
	if len(v.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(v.Items))
	}
	if v.Items[1].Kind != KindVariantGroup {
		t.Errorf("Items[1].Kind = %q, want variant group", v.Items[1].Kind)
	}
}

func TestSQLValue_SentinelListNormalizes(t *testing.T) {
	var v SQLValue
	if err := json.Unmarshal([]byte(`["<NO SQL GENERATE>"]`), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.Kind != KindSentinel || v.Sentinel != NoSQLGenerated {
		t.Errorf("got %+v, want no-sql sentinel", v)
	}
}

func TestSQLValue_EmptyCollectionsCollapse(t *testing.T) {
	if got := NewSequence(nil); got.Kind != KindSentinel {
		t.Errorf("NewSequence(nil).Kind = %q, want sentinel", got.Kind)
	}
	if got := NewVariantGroup(nil); got.Kind != KindSentinel {
		t.Errorf("NewVariantGroup(nil).Kind = %q, want sentinel", got.Kind)
	}
}

func TestSQLValue_MarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    SQLValue
	}{
		{"literal", NewLiteral("SELECT id FROM orders;")},
		{"sentinel", NewSentinel(LackInformation)},
		{"variant group", NewVariantGroup([]Variant{{Scenario: "a", SQL: "SELECT 1;"}})},
		{"sequence", NewSequence([]SQLValue{NewLiteral("SELECT 1;"), NewLiteral("SELECT 2;")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var back SQLValue
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !back.Equal(tt.v) {
				t.Errorf("round trip = %+v, want %+v", back, tt.v)
			}
		})
	}
}

func TestSQLValue_SentinelSerializesAsReservedLiteral(t *testing.T) {
	data, err := json.Marshal(NewSentinel(NoSQLGenerated))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"<NO SQL GENERATE>"` {
		t.Errorf("got %s, want reserved literal", data)
	}
}

func TestSQLValue_Statements(t *testing.T) {
	v := NewSequence([]SQLValue{
		NewLiteral("SELECT 1; <REDUNDANT SQL>"),
		NewVariantGroup([]Variant{{Scenario: "s", SQL: "SELECT 2;"}}),
	})
	got := v.Statements()
	want := []string{"SELECT 1;", "SELECT 2;"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Statements()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStripMarker(t *testing.T) {
	got := StripMarker("SELECT 1; <REDUNDANT SQL>")
	if got != "SELECT 1;" {
		t.Errorf("StripMarker() = %q", got)
	}
}
