// Package workflow sequences the pipeline stages over the working set,
// persisting every stage's output before advancing so any stage is a
// resume point.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ormsift/ormsift/internal/config"
	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/logging"
	"github.com/ormsift/ormsift/internal/reconcile"
	"github.com/ormsift/ormsift/internal/service"
)

// Env carries the shared collaborators stages need. Tuning is consulted at
// every stage boundary so config edits during a run take effect between
// stages, never within one.
type Env struct {
	Gen    core.Generator
	Tuning func(stage string) config.StageConfig
	Logger *logging.Logger
	Now    func() time.Time

	// Reviewer audits redundancy fix plans before they apply; nil skips
	// the audit.
	Reviewer reconcile.Reviewer

	// Generator request defaults, from GeneratorConfig.
	MaxTokens   int
	Temperature float64
}

func (e Env) logger() *logging.Logger {
	if e.Logger == nil {
		return logging.NewNop()
	}
	return e.Logger
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// fatalTaskErr reports whether a per-record task error must abort the whole
// stage rather than degrade the one record: cancellation, or a failure no
// amount of re-asking can cure, such as rejected credentials or corrupt
// state. Transient exhaustion and contract violations stay per-record.
func fatalTaskErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch core.GetCategory(err) {
	case core.ErrCatConfig, core.ErrCatState, core.ErrCatInput, core.ErrCatInternal:
		return true
	}
	return false
}

func (e Env) tuning(stage string) config.StageConfig {
	if e.Tuning == nil {
		return config.DefaultStageConfig()
	}
	return e.Tuning(stage)
}

// policyFor builds the stage's retry policy from its tuning.
func (e Env) policyFor(sc config.StageConfig) *service.RetryPolicy {
	return service.NewRetryPolicy(
		service.WithMaxAttempts(sc.MaxRetries),
		service.WithBaseDelay(sc.RetryDelay),
	)
}

// StageResult is what one stage hands back to the orchestrator.
type StageResult struct {
	Records  []core.Record
	Stats    any
	Modified int
	Deleted  int
}

// Stage is one named pipeline phase.
type Stage interface {
	Name() string
	Kind() core.StageKind
	Run(ctx context.Context, env Env, records []core.Record) (StageResult, error)
}

// Orchestrator drives stages in order, persisting output, statistics, and a
// stage record after each one. A stage error aborts the run; the last
// persisted stage stays the resume point.
type Orchestrator struct {
	stages    []Stage
	snapshots core.SnapshotStore
	log       core.LogStore
	env       Env
}

// New creates an orchestrator over the full pipeline.
func New(env Env, snapshots core.SnapshotStore, log core.LogStore) *Orchestrator {
	return NewWithStages(env, snapshots, log, Pipeline())
}

// NewWithStages creates an orchestrator over an explicit stage list.
func NewWithStages(env Env, snapshots core.SnapshotStore, log core.LogStore, stages []Stage) *Orchestrator {
	return &Orchestrator{
		stages:    stages,
		snapshots: snapshots,
		log:       log,
		env:       env,
	}
}

// Pipeline returns the stages in canonical order.
func Pipeline() []Stage {
	return []Stage{
		&CleaningStage{},
		&CompletenessStage{},
		&CorrectnessStage{},
		&KeywordStage{},
		&RedundancyStage{},
		&ControlFlowStage{},
	}
}

// Run executes the pipeline from the named stage onward (empty means from
// the beginning) and returns the final working set.
func (o *Orchestrator) Run(ctx context.Context, records []core.Record, fromStage string) ([]core.Record, error) {
	start := 0
	if fromStage != "" {
		start = -1
		for i, st := range o.stages {
			if st.Name() == fromStage {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, core.ErrState(core.CodeStageNotFound, fmt.Sprintf("unknown stage %q", fromStage))
		}
	}

	logger := o.env.logger()
	working := records
	summary := RunSummary{StartedAt: o.env.now(), InputRecords: len(records)}

	for _, stage := range o.stages[start:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stageLogger := logger.WithStage(stage.Name())
		started := o.env.now()
		stageLogger.Info("stage starting", "input_records", len(working))

		env := o.env
		env.Logger = stageLogger

		result, err := stage.Run(ctx, env, working)
		if err != nil {
			stageLogger.Error("stage failed", "error", err)
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		path, rec, err := o.persist(stage, started, len(working), result)
		if err != nil {
			return nil, fmt.Errorf("persisting stage %s: %w", stage.Name(), err)
		}
		summary.Stages = append(summary.Stages, rec)

		stageLogger.Info("stage completed",
			"output_records", len(result.Records),
			"modified", result.Modified,
			"deleted", result.Deleted,
			"snapshot", path,
			"duration", o.env.now().Sub(started).Round(time.Millisecond).String())

		working = result.Records
	}

	summary.FinishedAt = o.env.now()
	summary.OutputRecords = len(working)
	if err := o.snapshots.SaveStats("workflow", summary); err != nil {
		return nil, fmt.Errorf("writing workflow summary: %w", err)
	}
	return working, nil
}

// RunSummary is the per-run rollup written next to the stage snapshots.
type RunSummary struct {
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
	InputRecords  int                `json:"input_records"`
	OutputRecords int                `json:"output_records"`
	Stages        []core.StageRecord `json:"stages"`
}

// persist writes the snapshot, the statistics, and the stage record, in
// that order; the stage only counts as completed once all three are down.
func (o *Orchestrator) persist(stage Stage, started time.Time, inputCount int, result StageResult) (string, core.StageRecord, error) {
	path, err := o.snapshots.SaveStage(stage.Name(), result.Records)
	if err != nil {
		return "", core.StageRecord{}, err
	}
	if result.Stats != nil {
		if err := o.snapshots.SaveStats(stage.Name(), result.Stats); err != nil {
			return "", core.StageRecord{}, err
		}
	}

	rec := core.StageRecord{
		Name:          stage.Name(),
		Kind:          stage.Kind(),
		StartedAt:     started,
		DurationMS:    o.env.now().Sub(started).Milliseconds(),
		InputCount:    inputCount,
		OutputCount:   len(result.Records),
		ModifiedCount: result.Modified,
		DeletedCount:  result.Deleted,
		PersistedPath: path,
	}
	if err := o.log.Append(rec); err != nil {
		return "", core.StageRecord{}, err
	}
	return path, rec, nil
}
