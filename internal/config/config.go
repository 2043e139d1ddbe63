// Package config loads and validates the pipeline configuration from
// files, environment variables, and CLI flags.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Log       LogConfig              `mapstructure:"log"`
	Generator GeneratorConfig        `mapstructure:"generator"`
	Workflow  WorkflowConfig         `mapstructure:"workflow"`
	Stages    map[string]StageConfig `mapstructure:"stages"`
	Web       WebConfig              `mapstructure:"web"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // auto, text, json
}

// GeneratorConfig describes the chat completions endpoint.
type GeneratorConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// WorkflowConfig controls run-wide behavior.
type WorkflowConfig struct {
	InputPath  string `mapstructure:"input_path"`
	OutputDir  string `mapstructure:"output_dir"`
	LogBackend string `mapstructure:"log_backend"` // json or sqlite
}

// OnError policies for records whose checks could not complete.
const (
	OnErrorKeep = "keep"
	OnErrorDrop = "drop"
)

// StageConfig tunes one pipeline stage. OnError decides what happens to a
// record whose checks could not complete: "keep" applies the conservative
// pass-through default, "drop" removes the record.
type StageConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	MaxReformat int           `mapstructure:"max_reformat"`
	OnError     string        `mapstructure:"on_error"` // keep or drop
}

// WebConfig controls the read-only report server.
type WebConfig struct {
	Addr string `mapstructure:"addr"`
}

// Stage returns the effective config for a stage, falling back to defaults
// for unset fields.
func (c *Config) Stage(name string) StageConfig {
	sc, ok := c.Stages[name]
	if !ok {
		return DefaultStageConfig()
	}
	def := DefaultStageConfig()
	if sc.Concurrency <= 0 {
		sc.Concurrency = def.Concurrency
	}
	if sc.MaxRetries <= 0 {
		sc.MaxRetries = def.MaxRetries
	}
	if sc.RetryDelay <= 0 {
		sc.RetryDelay = def.RetryDelay
	}
	if sc.MaxReformat < 0 {
		sc.MaxReformat = def.MaxReformat
	}
	if sc.OnError == "" {
		sc.OnError = def.OnError
	}
	return sc
}
