package config

import "time"

// DefaultStageConfig returns the per-stage fallbacks.
func DefaultStageConfig() StageConfig {
	return StageConfig{
		Concurrency: 8,
		MaxRetries:  5,
		RetryDelay:  time.Second,
		MaxReformat: 2,
		OnError:     "keep",
	}
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Generator: GeneratorConfig{
			BaseURL:     "http://localhost:8080/v1",
			Model:       "default",
			Timeout:     5 * time.Minute,
			MaxTokens:   4096,
			Temperature: 0,
		},
		Workflow: WorkflowConfig{
			OutputDir:  ".ormsift",
			LogBackend: "json",
		},
		Stages: map[string]StageConfig{},
		Web: WebConfig{
			Addr: "127.0.0.1:8414",
		},
	}
}
