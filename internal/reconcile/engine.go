// Package reconcile applies fix plans to the working set: removing
// statements confirmed redundant, adding replacements, and deleting records
// left with nothing to say.
package reconcile

import (
	"fmt"

	"github.com/ormsift/ormsift/internal/core"
)

// Stats summarizes one plan application. They feed the stage record.
type Stats struct {
	InputRecords      int `json:"input_records"`
	OutputRecords     int `json:"output_records"`
	ModifiedRecords   int `json:"modified_records"`
	DeletedRecords    int `json:"deleted_records"`
	RemovedStatements int `json:"removed_statements"`
	AddedStatements   int `json:"added_statements"`
}

// ApplyFixPlan rewrites each targeted record's SQL value per its fix set and
// drops records whose value empties out. Records whose key is not in the
// plan pass through untouched. The returned slice preserves input order;
// OutputRecords + DeletedRecords always equals InputRecords.
//
// Application is idempotent: removal targets are gone after the first pass
// and additions already present are skipped, so a second pass with the same
// plan changes nothing.
func ApplyFixPlan(records []core.Record, plan core.FixPlan) ([]core.Record, Stats) {
	stats := Stats{InputRecords: len(records)}
	out := make([]core.Record, 0, len(records))

	for _, rec := range records {
		set, ok := plan[rec.Key()]
		if !ok {
			out = append(out, rec)
			continue
		}

		result := applyFixSet(rec.SQL, set)
		stats.RemovedStatements += result.removed
		stats.AddedStatements += result.added

		if result.deleted {
			stats.DeletedRecords++
			continue
		}
		if result.removed > 0 || result.added > 0 {
			stats.ModifiedRecords++
			rec.SQL = result.value
		}
		out = append(out, rec)
	}

	stats.OutputRecords = len(out)
	return out, stats
}

type fixResult struct {
	value   core.SQLValue
	deleted bool
	removed int
	added   int
}

// applyFixSet dispatches on the SQL value's shape. Deletion is signalled
// only when removals empty the value and no addition refills it; sentinels
// never delete.
func applyFixSet(v core.SQLValue, set *core.FixSet) fixResult {
	switch v.Kind {
	case core.KindLiteral:
		return applyToLiteral(v, set)
	case core.KindSequence:
		return applyToSequence(v, set)
	case core.KindVariantGroup:
		return applyToVariantGroup(v, set)
	case core.KindSentinel:
		return applyToSentinel(v, set)
	}
	return fixResult{value: v}
}

func applyToLiteral(v core.SQLValue, set *core.FixSet) fixResult {
	res := fixResult{}
	kept := []core.SQLValue{}

	if _, remove := set.Removals[core.StripMarker(v.Literal)]; remove {
		res.removed++
	} else {
		kept = append(kept, v)
	}

	kept, added := appendAdditions(kept, set)
	res.added = added

	if len(kept) == 0 {
		res.deleted = true
		return res
	}
	res.value = core.NewSequence(kept)
	return res
}

func applyToSequence(v core.SQLValue, set *core.FixSet) fixResult {
	res := fixResult{}
	kept := make([]core.SQLValue, 0, len(v.Items))

	for _, item := range v.Items {
		filtered, removed, empty := filterItem(item, set.Removals)
		res.removed += removed
		if !empty {
			kept = append(kept, filtered)
		}
	}

	kept, added := appendAdditions(kept, set)
	res.added = added

	if len(kept) == 0 {
		res.deleted = true
		return res
	}
	res.value = core.NewSequence(kept)
	return res
}

func applyToVariantGroup(v core.SQLValue, set *core.FixSet) fixResult {
	res := fixResult{}
	kept := make([]core.Variant, 0, len(v.Variants))

	for _, variant := range v.Variants {
		if _, remove := set.Removals[core.StripMarker(variant.SQL)]; remove {
			res.removed++
			continue
		}
		kept = append(kept, variant)
	}

	merged, added := mergeVariants(kept, set)
	res.added = added

	if len(merged) == 0 {
		res.deleted = true
		return res
	}
	res.value = core.NewVariantGroup(merged)
	return res
}

// applyToSentinel treats the sentinel as empty: additions replace it, no
// additions keeps it. A sentinel never triggers deletion.
func applyToSentinel(v core.SQLValue, set *core.FixSet) fixResult {
	built, added := appendAdditions(nil, set)
	if added == 0 {
		return fixResult{value: v}
	}
	return fixResult{value: core.NewSequence(built), added: added}
}

// filterItem removes matching statements from one sequence member,
// recursing into nested shapes. empty reports that nothing survived.
func filterItem(item core.SQLValue, removals map[string]struct{}) (core.SQLValue, int, bool) {
	switch item.Kind {
	case core.KindLiteral:
		if _, remove := removals[core.StripMarker(item.Literal)]; remove {
			return core.SQLValue{}, 1, true
		}
		return item, 0, false

	case core.KindVariantGroup:
		kept := make([]core.Variant, 0, len(item.Variants))
		removed := 0
		for _, variant := range item.Variants {
			if _, remove := removals[core.StripMarker(variant.SQL)]; remove {
				removed++
				continue
			}
			kept = append(kept, variant)
		}
		if len(kept) == 0 {
			return core.SQLValue{}, removed, true
		}
		return core.NewVariantGroup(kept), removed, false

	case core.KindSequence:
		kept := make([]core.SQLValue, 0, len(item.Items))
		removed := 0
		for _, nested := range item.Items {
			filtered, r, empty := filterItem(nested, removals)
			removed += r
			if !empty {
				kept = append(kept, filtered)
			}
		}
		if len(kept) == 0 {
			return core.SQLValue{}, removed, true
		}
		return core.NewSequence(kept), removed, false

	case core.KindSentinel:
		return item, 0, false
	}
	return item, 0, false
}

// appendAdditions folds the set's additions onto a list of sequence
// members, skipping statements already present.
func appendAdditions(items []core.SQLValue, set *core.FixSet) ([]core.SQLValue, int) {
	present := statementSet(items)
	added := 0

	for _, d := range set.Additions {
		switch d.Action {
		case core.ActionAddLiteral:
			sql := core.StripMarker(d.SQL)
			if _, dup := present[sql]; dup {
				continue
			}
			items = append(items, core.NewLiteral(sql))
			present[sql] = struct{}{}
			added++

		case core.ActionAddVariantGroup:
			fresh := make([]core.Variant, 0, len(d.Variants))
			for _, variant := range d.Variants {
				sql := core.StripMarker(variant.SQL)
				if _, dup := present[sql]; dup {
					continue
				}
				fresh = append(fresh, core.Variant{Scenario: variant.Scenario, SQL: sql})
				present[sql] = struct{}{}
			}
			if len(fresh) == 0 {
				continue
			}
			items = append(items, core.NewVariantGroup(fresh))
			added += len(fresh)
		}
	}
	return items, added
}

// mergeVariants folds additions into a variant list. Literal additions get
// generated scenario labels; variant-group additions are flattened.
func mergeVariants(variants []core.Variant, set *core.FixSet) ([]core.Variant, int) {
	present := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		present[core.StripMarker(v.SQL)] = struct{}{}
	}
	added := 0

	for _, d := range set.Additions {
		switch d.Action {
		case core.ActionAddLiteral:
			sql := core.StripMarker(d.SQL)
			if _, dup := present[sql]; dup {
				continue
			}
			variants = append(variants, core.Variant{
				Scenario: fmt.Sprintf("scenario_%d", len(variants)+1),
				SQL:      sql,
			})
			present[sql] = struct{}{}
			added++

		case core.ActionAddVariantGroup:
			for _, variant := range d.Variants {
				sql := core.StripMarker(variant.SQL)
				if _, dup := present[sql]; dup {
					continue
				}
				variants = append(variants, core.Variant{Scenario: variant.Scenario, SQL: sql})
				present[sql] = struct{}{}
				added++
			}
		}
	}
	return variants, added
}

func statementSet(items []core.SQLValue) map[string]struct{} {
	present := make(map[string]struct{})
	for _, item := range items {
		for _, sql := range item.Statements() {
			present[sql] = struct{}{}
		}
	}
	return present
}
