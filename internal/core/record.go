package core

import (
	"encoding/json"
	"time"
)

// EntityKey identifies the record a fix decision targets: the ORM method
// body plus the caller that reached it.
type EntityKey struct {
	ORMCode string
	Caller  string
}

// CheckAnnotation records the outcome of one validation stage on a record.
// Degraded marks the conservative default applied after retry exhaustion;
// ValidationFailed marks a value that parsed but never satisfied its
// contract.
type CheckAnnotation struct {
	Passed           bool      `json:"passed"`
	Reason           string    `json:"reason,omitempty"`
	Degraded         bool      `json:"degraded,omitempty"`
	ValidationFailed bool      `json:"validation_failed,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}

// Record is one code-analysis sample: an ORM method, its caller, and the
// candidate SQL the analyzer attributed to it. Stages mutate SQL and Tags in
// place; only the reconciliation engine removes records from the working set.
type Record struct {
	FunctionName string                     `json:"function_name"`
	ORMCode      string                     `json:"orm_code"`
	Caller       string                     `json:"caller"`
	SQL          SQLValue                   `json:"sql_statement_list"`
	SQLTypes     []string                   `json:"sql_types,omitempty"`
	Tags         []string                   `json:"tags,omitempty"`
	Checks       map[string]CheckAnnotation `json:"checks,omitempty"`
	Meta         json.RawMessage            `json:"code_meta_data,omitempty"`
	SourceFile   string                     `json:"source_file,omitempty"`
}

// Key returns the record's entity key.
func (r *Record) Key() EntityKey {
	return EntityKey{ORMCode: r.ORMCode, Caller: r.Caller}
}

// AddTag appends a tag if not already present, preserving order.
func (r *Record) AddTag(tag string) {
	for _, t := range r.Tags {
		if t == tag {
			return
		}
	}
	r.Tags = append(r.Tags, tag)
}

// SetCheck records a stage check outcome on the record.
func (r *Record) SetCheck(name string, ann CheckAnnotation) {
	if r.Checks == nil {
		r.Checks = make(map[string]CheckAnnotation)
	}
	r.Checks[name] = ann
}
