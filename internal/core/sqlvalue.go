package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reserved sentinel literals used by the dataset instead of empty collections.
const (
	SentinelNoSQL    = "<NO SQL GENERATE>"
	SentinelLackInfo = "<LACK INFORMATION>"
)

// RedundantMarker is appended to statements flagged by fingerprint analysis.
// It is stripped before any comparison against removal targets.
const RedundantMarker = " <REDUNDANT SQL>"

// SQLKind discriminates the SQLValue union.
type SQLKind string

const (
	KindLiteral      SQLKind = "literal"
	KindSequence     SQLKind = "sequence"
	KindVariantGroup SQLKind = "variant_group"
	KindSentinel     SQLKind = "sentinel"
)

// SentinelKind names the two reserved sentinel values.
type SentinelKind string

const (
	NoSQLGenerated  SentinelKind = "no_sql_generated"
	LackInformation SentinelKind = "lack_information"
)

// Variant is one branch of a parameter-dependent SQL group.
type Variant struct {
	Scenario string `json:"scenario"`
	SQL      string `json:"sql"`
}

// SQLValue is the polymorphic SQL shape carried by a record: a single
// statement, an ordered sequence of statements and variant groups, a
// parameter-dependent variant group, or a reserved sentinel. A sequence or
// variant group is never empty; emptiness collapses to a sentinel.
type SQLValue struct {
	Kind     SQLKind
	Literal  string
	Items    []SQLValue // sequence members: literals and variant groups
	Variants []Variant
	Sentinel SentinelKind
}

// NewLiteral creates a literal SQL value. Reserved sentinel text yields the
// corresponding sentinel instead.
func NewLiteral(sql string) SQLValue {
	switch sql {
	case SentinelNoSQL:
		return NewSentinel(NoSQLGenerated)
	case SentinelLackInfo:
		return NewSentinel(LackInformation)
	}
	return SQLValue{Kind: KindLiteral, Literal: sql}
}

// NewSequence creates a sequence value, collapsing emptiness to a sentinel.
func NewSequence(items []SQLValue) SQLValue {
	if len(items) == 0 {
		return NewSentinel(NoSQLGenerated)
	}
	if len(items) == 1 {
		return items[0]
	}
	return SQLValue{Kind: KindSequence, Items: items}
}

// NewVariantGroup creates a variant group, collapsing emptiness to a sentinel.
func NewVariantGroup(variants []Variant) SQLValue {
	if len(variants) == 0 {
		return NewSentinel(NoSQLGenerated)
	}
	return SQLValue{Kind: KindVariantGroup, Variants: variants}
}

// NewSentinel creates a sentinel value.
func NewSentinel(kind SentinelKind) SQLValue {
	return SQLValue{Kind: KindSentinel, Sentinel: kind}
}

// SentinelText returns the reserved literal for a sentinel kind.
func (k SentinelKind) Text() string {
	if k == LackInformation {
		return SentinelLackInfo
	}
	return SentinelNoSQL
}

// IsSentinel reports whether the value is a sentinel.
func (v SQLValue) IsSentinel() bool {
	return v.Kind == KindSentinel
}

// StripMarker removes the redundant-SQL marker and surrounding space.
func StripMarker(sql string) string {
	return strings.TrimSpace(strings.ReplaceAll(sql, RedundantMarker, ""))
}

// Statements flattens the value into its bare SQL texts, marker-stripped.
// Sentinels contribute nothing.
func (v SQLValue) Statements() []string {
	var out []string
	switch v.Kind {
	case KindLiteral:
		out = append(out, StripMarker(v.Literal))
	case KindSequence:
		for _, item := range v.Items {
			out = append(out, item.Statements()...)
		}
	case KindVariantGroup:
		for _, variant := range v.Variants {
			out = append(out, StripMarker(variant.SQL))
		}
	}
	return out
}

// Equal reports deep equality of two SQL values.
func (v SQLValue) Equal(other SQLValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindLiteral:
		return v.Literal == other.Literal
	case KindSentinel:
		return v.Sentinel == other.Sentinel
	case KindVariantGroup:
		if len(v.Variants) != len(other.Variants) {
			return false
		}
		for i := range v.Variants {
			if v.Variants[i] != other.Variants[i] {
				return false
			}
		}
		return true
	case KindSequence:
		if len(v.Items) != len(other.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// variantGroupWire is the serialized form of a variant group.
type variantGroupWire struct {
	Type     string    `json:"type"`
	Variants []Variant `json:"variants"`
}

const variantGroupType = "param_dependent"

// MarshalJSON serializes to the dataset wire format: a string for literals
// and sentinels, an array for sequences, and a param_dependent object for
// variant groups.
func (v SQLValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindLiteral:
		return json.Marshal(v.Literal)
	case KindSentinel:
		return json.Marshal(v.Sentinel.Text())
	case KindVariantGroup:
		return json.Marshal(variantGroupWire{Type: variantGroupType, Variants: v.Variants})
	case KindSequence:
		return json.Marshal(v.Items)
	}
	return nil, fmt.Errorf("unknown SQL value kind %q", v.Kind)
}

// UnmarshalJSON parses the dataset wire format. A one-element array holding
// the no-SQL sentinel normalizes to the sentinel itself, matching how the
// upstream analyzers emit it.
func (v *SQLValue) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return fmt.Errorf("empty SQL value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = NewLiteral(s)
		return nil

	case '{':
		var wire variantGroupWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return err
		}
		if wire.Type != variantGroupType {
			return fmt.Errorf("unknown SQL object type %q", wire.Type)
		}
		*v = NewVariantGroup(wire.Variants)
		return nil

	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return err
		}
		items := make([]SQLValue, 0, len(raws))
		for _, raw := range raws {
			var item SQLValue
			if err := item.UnmarshalJSON(raw); err != nil {
				return err
			}
			items = append(items, item)
		}
		*v = NewSequence(items)
		return nil
	}
	return fmt.Errorf("unsupported SQL value shape: %s", string(data[:min(len(data), 32)]))
}
