package workflow

import (
	"context"
	"strings"

	"github.com/ormsift/ormsift/internal/core"
)

// sqlKeywords are the leading tokens a statement must contain to count as
// SQL at all. Matching is case-insensitive substring on word level.
var sqlKeywords = []string{
	"select", "insert", "update", "delete",
	"create", "alter", "drop", "truncate",
	"begin", "commit", "rollback", "savepoint",
	"lock", "unlock", "set", "show", "explain",
}

// CleaningStats summarizes the cleaning pass.
type CleaningStats struct {
	InputRecords      int `json:"input_records"`
	OutputRecords     int `json:"output_records"`
	RemovedStatements int `json:"removed_statements"`
	EmptiedRecords    int `json:"emptied_records"`
}

// CleaningStage drops statements that are not SQL: free-form prose the
// analyzer emitted in place of a query, or text in the source language of
// the code comments. Variant groups pass through whole; a record left with
// nothing becomes the no-SQL sentinel rather than disappearing, so the
// record count is stable through this stage.
type CleaningStage struct{}

func (s *CleaningStage) Name() string         { return core.StageCleaning }
func (s *CleaningStage) Kind() core.StageKind { return core.StageKindCleaning }

func (s *CleaningStage) Run(ctx context.Context, env Env, records []core.Record) (StageResult, error) {
	stats := CleaningStats{InputRecords: len(records)}

	out := make([]core.Record, 0, len(records))
	for i := range records {
		if err := ctx.Err(); err != nil {
			return StageResult{}, err
		}
		rec := records[i]
		cleaned, removed := cleanValue(rec.SQL)
		stats.RemovedStatements += removed
		if removed > 0 && cleaned.IsSentinel() && !rec.SQL.IsSentinel() {
			stats.EmptiedRecords++
			env.logger().Debug("record emptied by cleaning", "function", rec.FunctionName)
		}
		rec.SQL = cleaned
		out = append(out, rec)
	}

	stats.OutputRecords = len(out)
	return StageResult{Records: out, Stats: stats, Modified: stats.EmptiedRecords}, nil
}

// cleanValue filters a SQL value, returning the cleaned value and the
// number of statements dropped. Emptied collections collapse to the no-SQL
// sentinel via the constructors.
func cleanValue(v core.SQLValue) (core.SQLValue, int) {
	switch v.Kind {
	case core.KindLiteral:
		if isLikelySQL(v.Literal) {
			v.Literal = strings.TrimSpace(v.Literal)
			return v, 0
		}
		return core.NewSentinel(core.NoSQLGenerated), 1

	case core.KindSequence:
		kept := make([]core.SQLValue, 0, len(v.Items))
		removed := 0
		for _, item := range v.Items {
			if item.Kind == core.KindLiteral {
				if !isLikelySQL(item.Literal) {
					removed++
					continue
				}
				item.Literal = strings.TrimSpace(item.Literal)
			}
			kept = append(kept, item)
		}
		if removed == 0 {
			return core.NewSequence(kept), 0
		}
		return core.NewSequence(kept), removed

	default:
		// Variant groups and sentinels pass through untouched.
		return v, 0
	}
}

// isLikelySQL reports whether the text reads as a SQL statement: it carries
// at least one SQL keyword and no CJK characters.
func isLikelySQL(text string) bool {
	stripped := core.StripMarker(text)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r >= 0x4e00 && r <= 0x9fff {
			return false
		}
	}
	lower := strings.ToLower(stripped)
	for _, kw := range sqlKeywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

// containsWord reports a whole-word occurrence of kw in lowercased text.
func containsWord(lower, kw string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
