package config

import (
	"fmt"
	"strings"

	"github.com/ormsift/ormsift/internal/core"
)

func stageNames() []string {
	return core.StageOrder()
}

// ValidationError describes one bad configuration field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns all problems at once.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", cfg.Log.Level, "must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "auto", "text", "json":
	default:
		add("log.format", cfg.Log.Format, "must be one of: auto, text, json")
	}

	if cfg.Generator.BaseURL == "" {
		add("generator.base_url", cfg.Generator.BaseURL, "required")
	}
	if cfg.Generator.Model == "" {
		add("generator.model", cfg.Generator.Model, "required")
	}
	if cfg.Generator.Timeout < 0 {
		add("generator.timeout", cfg.Generator.Timeout, "must not be negative")
	}
	if cfg.Generator.Temperature < 0 || cfg.Generator.Temperature > 2 {
		add("generator.temperature", cfg.Generator.Temperature, "must be in [0, 2]")
	}

	if cfg.Workflow.OutputDir == "" {
		add("workflow.output_dir", cfg.Workflow.OutputDir, "required")
	}
	switch cfg.Workflow.LogBackend {
	case "", "json", "sqlite":
	default:
		add("workflow.log_backend", cfg.Workflow.LogBackend, "must be json or sqlite")
	}

	known := make(map[string]bool, len(stageNames()))
	for _, name := range stageNames() {
		known[name] = true
	}
	for name, sc := range cfg.Stages {
		if !known[name] {
			add("stages."+name, name, "unknown stage")
			continue
		}
		if sc.Concurrency < 0 {
			add("stages."+name+".concurrency", sc.Concurrency, "must not be negative")
		}
		if sc.MaxRetries < 0 {
			add("stages."+name+".max_retries", sc.MaxRetries, "must not be negative")
		}
		if sc.MaxReformat < 0 {
			add("stages."+name+".max_reformat", sc.MaxReformat, "must not be negative")
		}
		switch sc.OnError {
		case "", "keep", "drop":
		default:
			add("stages."+name+".on_error", sc.OnError, "must be keep or drop")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
