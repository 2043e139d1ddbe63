package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads configuration from files, environment, and bound flags.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a loader with its own viper instance.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "ORMSIFT",
	}
}

// NewLoaderWithViper creates a loader over an existing viper instance so
// CLI flag bindings participate in precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "ORMSIFT",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (bound via viper.BindPFlag)
// 2. Environment variables (ORMSIFT_*)
// 3. Project config (.ormsift.yaml in current directory)
// 4. User config (~/.config/ormsift/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".ormsift")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "ormsift"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	def := Default()

	l.v.SetDefault("log.level", def.Log.Level)
	l.v.SetDefault("log.format", def.Log.Format)

	l.v.SetDefault("generator.base_url", def.Generator.BaseURL)
	l.v.SetDefault("generator.model", def.Generator.Model)
	l.v.SetDefault("generator.timeout", def.Generator.Timeout.String())
	l.v.SetDefault("generator.max_tokens", def.Generator.MaxTokens)
	l.v.SetDefault("generator.temperature", def.Generator.Temperature)

	l.v.SetDefault("workflow.output_dir", def.Workflow.OutputDir)
	l.v.SetDefault("workflow.log_backend", def.Workflow.LogBackend)

	l.v.SetDefault("web.addr", def.Web.Addr)

	stage := DefaultStageConfig()
	for _, name := range stageNames() {
		prefix := "stages." + name + "."
		l.v.SetDefault(prefix+"concurrency", stage.Concurrency)
		l.v.SetDefault(prefix+"max_retries", stage.MaxRetries)
		l.v.SetDefault(prefix+"retry_delay", stage.RetryDelay.String())
		l.v.SetDefault(prefix+"max_reformat", stage.MaxReformat)
		l.v.SetDefault(prefix+"on_error", stage.OnError)
	}
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
