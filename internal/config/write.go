package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/fsutil"
)

// DefaultYAML renders the default configuration as a YAML document, with
// every stage section spelled out so users see what they can tune.
func DefaultYAML() ([]byte, error) {
	cfg := Default()

	stages := map[string]any{}
	for _, name := range core.StageOrder() {
		sc := cfg.Stage(name)
		stages[name] = map[string]any{
			"concurrency":  sc.Concurrency,
			"max_retries":  sc.MaxRetries,
			"retry_delay":  sc.RetryDelay.String(),
			"max_reformat": sc.MaxReformat,
			"on_error":     sc.OnError,
		}
	}

	doc := map[string]any{
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
		"generator": map[string]any{
			"base_url":    cfg.Generator.BaseURL,
			"model":       cfg.Generator.Model,
			"api_key":     "",
			"timeout":     cfg.Generator.Timeout.String(),
			"max_tokens":  cfg.Generator.MaxTokens,
			"temperature": cfg.Generator.Temperature,
		},
		"workflow": map[string]any{
			"input_path":  cfg.Workflow.InputPath,
			"output_dir":  cfg.Workflow.OutputDir,
			"log_backend": cfg.Workflow.LogBackend,
		},
		"stages": stages,
		"web": map[string]any{
			"addr": cfg.Web.Addr,
		},
	}
	return yaml.Marshal(doc)
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force && fsutil.Exists(path) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
