package core

import "time"

// StageKind classifies workflow stages by the work they do.
type StageKind string

const (
	StageKindCleaning   StageKind = "cleaning"
	StageKindCheck      StageKind = "check"
	StageKindTagging    StageKind = "tagging"
	StageKindValidation StageKind = "validation"
)

// Canonical stage names, in pipeline order.
const (
	StageCleaning     = "sql_cleaning"
	StageCompleteness = "completeness_check"
	StageCorrectness  = "correctness_check"
	StageKeywords     = "keyword_tagging"
	StageRedundancy   = "redundancy_validation"
	StageControlFlow  = "control_flow_validation"
)

// StageOrder returns the canonical stage names in pipeline order.
func StageOrder() []string {
	return []string{
		StageCleaning,
		StageCompleteness,
		StageCorrectness,
		StageKeywords,
		StageRedundancy,
		StageControlFlow,
	}
}

// StageIndex returns a stage's position in the pipeline, or -1.
func StageIndex(name string) int {
	for i, s := range StageOrder() {
		if s == name {
			return i
		}
	}
	return -1
}

// StageRecord is the durable log entry for one completed stage.
type StageRecord struct {
	Name          string    `json:"name"`
	Kind          StageKind `json:"kind"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
	InputCount    int       `json:"input_records"`
	OutputCount   int       `json:"output_records"`
	ModifiedCount int       `json:"modified_records"`
	DeletedCount  int       `json:"deleted_records"`
	PersistedPath string    `json:"persisted_path"`
}

// WorkflowLog is the ordered history of completed stages. Together with the
// stage snapshots it is the orchestrator's only durable control-flow state.
type WorkflowLog struct {
	RunID   string        `json:"run_id"`
	Stages  []StageRecord `json:"stages"`
	Updated time.Time     `json:"updated_at"`
}

// Last returns the most recent stage record, or nil if none.
func (l *WorkflowLog) Last() *StageRecord {
	if len(l.Stages) == 0 {
		return nil
	}
	return &l.Stages[len(l.Stages)-1]
}

// Find returns the most recent record for a stage name, or nil.
func (l *WorkflowLog) Find(name string) *StageRecord {
	for i := len(l.Stages) - 1; i >= 0; i-- {
		if l.Stages[i].Name == name {
			return &l.Stages[i]
		}
	}
	return nil
}
