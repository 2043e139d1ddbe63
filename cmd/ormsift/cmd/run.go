package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ormsift/ormsift/internal/adapters/state"
	"github.com/ormsift/ormsift/internal/config"
	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/logging"
	"github.com/ormsift/ormsift/internal/reconcile"
	"github.com/ormsift/ormsift/internal/service"
	"github.com/ormsift/ormsift/internal/workflow"
)

var (
	runInput string
	runFrom  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline over an input dataset",
	Long: `Run executes all pipeline stages in order over the input dataset.
Each stage's output is snapshotted before the next one starts; use
'ormsift resume' to continue an interrupted run.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "input dataset (JSON array of records)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "start at this stage instead of the beginning")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	input := runInput
	if input == "" {
		input = cfg.Workflow.InputPath
	}
	if input == "" {
		return fmt.Errorf("no input dataset: pass --input or set workflow.input_path")
	}

	records, err := workflow.LoadDataset(input)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "path", input, "records", len(records))

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	snaps, logStore, err := openStores(cfg, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := state.CloseLogStore(logStore); err != nil {
			logger.Warn("closing log store", "error", err)
		}
	}()

	env, cleanup := buildEnv(cfg, loader, gen, logger.WithRun(runID))
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := workflow.New(env, snaps, logStore)
	out, err := orch.Run(ctx, records, runFrom)
	if err != nil {
		return err
	}

	logger.Info("pipeline finished", "records", len(out), "output_dir", cfg.Workflow.OutputDir)
	fmt.Printf("Pipeline complete: %d records, snapshots in %s\n", len(out), cfg.Workflow.OutputDir)
	return nil
}

// buildEnv assembles the stage environment: generator, live per-stage
// tuning (reloaded from the config file between stages), and the fix-plan
// reviewer. The returned cleanup stops the config watcher.
func buildEnv(cfg *config.Config, loader *config.Loader, gen core.Generator, logger *logging.Logger) (workflow.Env, func()) {
	tuning := func(stage string) config.StageConfig { return cfg.Stage(stage) }
	cleanup := func() {}

	if file := loader.ConfigFile(); file != "" {
		watcher := config.NewWatcher(file, cfg, logger)
		tuning = func(stage string) config.StageConfig { return watcher.Current().Stage(stage) }
		cleanup = watcher.Close
	}

	reviewSC := cfg.Stage(core.StageRedundancy)
	reviewer := reconcile.NewLLMReviewer(gen, reviewPolicy(reviewSC), reviewSC.MaxReformat)

	return workflow.Env{
		Gen:         gen,
		Tuning:      tuning,
		Logger:      logger,
		Reviewer:    reviewer,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
	}, cleanup
}

func reviewPolicy(sc config.StageConfig) *service.RetryPolicy {
	return service.NewRetryPolicy(
		service.WithMaxAttempts(sc.MaxRetries),
		service.WithBaseDelay(sc.RetryDelay),
	)
}
