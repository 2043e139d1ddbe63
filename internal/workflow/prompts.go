package workflow

import (
	"fmt"
	"strings"

	"github.com/ormsift/ormsift/internal/core"
)

// recordMaterial renders the shared context block every per-record prompt
// starts from.
func recordMaterial(rec *core.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Function: %s\n\n", rec.FunctionName)
	fmt.Fprintf(&b, "ORM code:\n%s\n\n", rec.ORMCode)
	if rec.Caller != "" {
		fmt.Fprintf(&b, "Caller:\n%s\n\n", rec.Caller)
	}
	stmts := rec.SQL.Statements()
	if len(stmts) > 0 {
		b.WriteString("Current SQL:\n")
		for i, s := range stmts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func completenessPrompt(rec *core.Record) string {
	return recordMaterial(rec) +
		"Judge whether the ORM code above, together with its caller context, " +
		"carries enough information to derive the SQL it executes. Missing table " +
		"names, column lists known only at runtime, or model definitions that are " +
		"not shown all make it incomplete.\n\n" +
		"Answer with a JSON object only:\n" +
		"{\"is_complete\": true or false, \"reason\": \"short explanation\"}"
}

func correctnessPrompt(rec *core.Record) string {
	return recordMaterial(rec) +
		"Judge whether the SQL statements above correctly reflect what the ORM " +
		"code executes: right operation, right table, right columns and " +
		"conditions. Formatting and placeholder style differences do not count " +
		"as errors.\n\n" +
		"Answer with a JSON object only:\n" +
		"{\"is_correct\": true or false, \"reason\": \"short explanation\"}"
}

func keywordPrompt(rec *core.Record, allowed []string) string {
	return recordMaterial(rec) +
		"From the following list, name every feature the ORM code above uses:\n" +
		strings.Join(allowed, ", ") + "\n\n" +
		"Answer with a JSON object only:\n" +
		"{\"keywords\": [\"...\"]}\n" +
		"Use only names from the list; answer {\"keywords\": []} when none apply."
}

func redundancyPrompt(rec *core.Record, cand candidate) string {
	header := recordMaterial(rec)
	switch cand.Kind {
	case candidateRedundant:
		return header + fmt.Sprintf(
			"Other callers of the same ORM method already cover this statement:\n%s\n\n"+
				"Judge whether it is genuinely redundant for this caller, meaning "+
				"removing it loses no behavior this caller exercises.\n\n"+
				"Answer with a JSON object only:\n"+
				"{\"confirmed\": true or false, \"reason\": \"short explanation\"}",
			cand.Statement)
	default:
		return header + fmt.Sprintf(
			"The reference caller of the same ORM method also executes this "+
				"statement, which is missing here:\n%s\n\n"+
				"Judge whether this caller would execute it too.\n\n"+
				"Answer with a JSON object only:\n"+
				"{\"confirmed\": true or false, \"reason\": \"short explanation\"}",
			cand.Statement)
	}
}

func controlFlowPrompt(rec *core.Record) string {
	return recordMaterial(rec) +
		"The ORM code above branches (switch / if-else), so different runtime " +
		"paths may execute different SQL. Count the distinct SQL-producing " +
		"branches and judge whether the current SQL covers them.\n\n" +
		"Answer with a JSON object only:\n" +
		"{\"final_judgment\": {\"is_correct\": true or false, \"reason\": \"short explanation\"}, " +
		"\"sql_variants_analysis\": {\"expected_count\": N, \"actual_count\": N}}"
}

func regeneratePrompt(rec *core.Record) string {
	return recordMaterial(rec) +
		"The current SQL does not cover every branch of the ORM code. Produce " +
		"the full set: one entry per distinct runtime path.\n\n" +
		"Answer with a JSON object only:\n" +
		"{\"type\": \"param_dependent\", \"variants\": [{\"scenario\": \"...\", \"sql\": \"...\"}]}"
}
