package core

import "context"

// GenerateRequest configures one opaque generator call.
type GenerateRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator is the opaque text-generation boundary. Implementations fail
// with transient DomainErrors (timeout, connection, empty response) so the
// backoff controller can classify them.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Ping checks the endpoint is reachable, for diagnostics.
	Ping(ctx context.Context) error
}

// SnapshotStore persists full working-set snapshots keyed by stage name.
type SnapshotStore interface {
	SaveStage(stage string, records []Record) (path string, err error)
	LoadStage(stage string) ([]Record, error)
	SaveStats(stage string, stats any) error
	HasStage(stage string) bool
}

// LogStore persists the ordered workflow log across process restarts.
type LogStore interface {
	Append(rec StageRecord) error
	Load() (*WorkflowLog, error)
}
