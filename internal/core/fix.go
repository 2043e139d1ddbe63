package core

// FixAction names the kinds of fix decisions a validation stage can emit.
type FixAction string

const (
	ActionRemoveLiteral   FixAction = "remove_literal"
	ActionAddLiteral      FixAction = "add_literal"
	ActionAddVariantGroup FixAction = "add_variant_group"
)

// FixDecision is one remove/add decision targeting a single entity key.
// RemoveLiteral and AddLiteral carry SQL; AddVariantGroup carries Variants.
type FixDecision struct {
	Key      EntityKey `json:"-"`
	Action   FixAction `json:"action"`
	SQL      string    `json:"sql,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

// FixSet aggregates the decisions for one entity key: a set of removal
// targets (marker-stripped) and an ordered list of additions.
type FixSet struct {
	Removals  map[string]struct{}
	Additions []FixDecision
}

// FixPlan groups fix decisions by entity key.
type FixPlan map[EntityKey]*FixSet

// Add folds a decision into the plan. Removal targets are marker-stripped
// and deduplicated; additions keep their emission order.
func (p FixPlan) Add(d FixDecision) {
	set, ok := p[d.Key]
	if !ok {
		set = &FixSet{Removals: make(map[string]struct{})}
		p[d.Key] = set
	}
	switch d.Action {
	case ActionRemoveLiteral:
		target := StripMarker(d.SQL)
		if target != "" {
			set.Removals[target] = struct{}{}
		}
	case ActionAddLiteral:
		if StripMarker(d.SQL) != "" {
			set.Additions = append(set.Additions, d)
		}
	case ActionAddVariantGroup:
		if len(d.Variants) > 0 {
			set.Additions = append(set.Additions, d)
		}
	}
}

// Decisions returns the total number of removal targets and additions.
func (p FixPlan) Decisions() (removals, additions int) {
	for _, set := range p {
		removals += len(set.Removals)
		additions += len(set.Additions)
	}
	return removals, additions
}
