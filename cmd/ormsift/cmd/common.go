package cmd

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/ormsift/ormsift/internal/adapters/llm"
	"github.com/ormsift/ormsift/internal/adapters/state"
	"github.com/ormsift/ormsift/internal/config"
	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/fsutil"
	"github.com/ormsift/ormsift/internal/logging"
)

// loadConfig reads and validates configuration with CLI flag bindings
// participating in precedence.
func loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *logging.Logger {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	return logging.New(lc)
}

// newGenerator builds the chat completions client from config.
func newGenerator(cfg *config.Config, logger *logging.Logger) (*llm.Client, error) {
	return llm.NewClient(llm.Config{
		BaseURL:     cfg.Generator.BaseURL,
		Model:       cfg.Generator.Model,
		APIKey:      cfg.Generator.APIKey,
		Timeout:     cfg.Generator.Timeout,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
	}, logger)
}

// openStores opens the snapshot store and workflow log under the output
// directory.
func openStores(cfg *config.Config, runID string) (*state.FileSnapshotStore, core.LogStore, error) {
	if err := fsutil.EnsureDir(cfg.Workflow.OutputDir); err != nil {
		return nil, nil, fmt.Errorf("creating output dir: %w", err)
	}
	snaps, err := state.NewFileSnapshotStore(cfg.Workflow.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	logStore, err := state.NewLogStore(cfg.Workflow.LogBackend, cfg.Workflow.OutputDir, runID)
	if err != nil {
		return nil, nil, err
	}
	return snaps, logStore, nil
}
