// Package config provides unified configuration loading for macrosim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MacrosimConfig contains all macrosim configuration settings.
type MacrosimConfig struct {
	// Simulation contains defaults for simulation runs.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Output contains settings for table and file output.
	Output OutputConfig `json:"output" yaml:"output"`

	// Store contains settings for the run database.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational logging and run tracing.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig configures simulation runs.
type SimulationConfig struct {
	// Workers bounds parallel runs in a series. 0 uses every CPU.
	Workers int `json:"workers" yaml:"workers"`

	// Seed applies to models whose specification sets no seed.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// OutputConfig configures table output.
type OutputConfig struct {
	// Delimiter separates CSV fields. Must be a single character.
	Delimiter string `json:"delimiter" yaml:"delimiter"`

	// Quoting selects the CSV quoting style: "minimal", "all", "nonnumeric" or "none".
	Quoting string `json:"quoting" yaml:"quoting"`

	// ConcatNames joins group names into one column with this separator when set.
	ConcatNames string `json:"concat_names,omitempty" yaml:"concat_names,omitempty"`

	// ArchiveDir is where archives without an explicit path are written.
	// Empty means ~/.macrosim/archives.
	ArchiveDir string `json:"archive_dir,omitempty" yaml:"archive_dir,omitempty"`

	// ArchiveKeep is how many archives to keep in ArchiveDir. 0 keeps all.
	ArchiveKeep int `json:"archive_keep" yaml:"archive_keep"`
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	// Path is the database file. Empty means ~/.macrosim/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Persist saves every run without needing --db.
	Persist bool `json:"persist" yaml:"persist"`
}

// LoggingConfig configures macrosim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables run tracing to ~/.macrosim/runs.jsonl.
	// "trace" additionally logs every iteration.
	Level string `json:"level" yaml:"level"`

	// Format selects "text" (logfmt) or "pretty" (colored) stderr output.
	Format string `json:"format" yaml:"format"`
}

// Default returns a MacrosimConfig with sensible defaults.
func Default() *MacrosimConfig {
	return &MacrosimConfig{
		Simulation: SimulationConfig{
			Workers: 0,
		},
		Output: OutputConfig{
			Delimiter: ",",
			Quoting:   "minimal",
		},
		Store: StoreConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the per-user configuration directory (~/.macrosim).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".macrosim"), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.macrosim/config.yaml -> environment variables
func Load() (*MacrosimConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*MacrosimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Store.Path = os.ExpandEnv(config.Store.Path)
	config.Output.ArchiveDir = os.ExpandEnv(config.Output.ArchiveDir)

	return config, nil
}

// Save writes the configuration as YAML to path, creating its directory.
func (c *MacrosimConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *MacrosimConfig) Validate() error {
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Simulation.Workers)
	}

	if utf8.RuneCountInString(c.Output.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Output.Delimiter)
	}

	validQuoting := map[string]bool{"minimal": true, "all": true, "nonnumeric": true, "none": true}
	if !validQuoting[c.Output.Quoting] {
		return fmt.Errorf("invalid quoting: %s (valid: minimal, all, nonnumeric, none)", c.Output.Quoting)
	}

	if c.Output.ArchiveKeep < 0 {
		return fmt.Errorf("archive_keep must be non-negative, got %d", c.Output.ArchiveKeep)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "pretty": true}
	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, pretty, or empty for default)", c.Logging.Format)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *MacrosimConfig) {
	if v := os.Getenv("MACROSIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Workers = n
		}
	}

	if v := os.Getenv("MACROSIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = &n
		}
	}

	if v := os.Getenv("MACROSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("MACROSIM_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	if v := os.Getenv("MACROSIM_DB_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("MACROSIM_CSV_DELIMITER"); v != "" {
		config.Output.Delimiter = v
	}
}
