package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Simulation.Workers != 0 {
		t.Errorf("expected Workers 0, got %d", config.Simulation.Workers)
	}
	if config.Simulation.Seed != nil {
		t.Errorf("expected no default seed, got %d", *config.Simulation.Seed)
	}
	if config.Output.Delimiter != "," {
		t.Errorf("expected Delimiter ',', got '%s'", config.Output.Delimiter)
	}
	if config.Output.Quoting != "minimal" {
		t.Errorf("expected Quoting 'minimal', got '%s'", config.Output.Quoting)
	}
	if config.Store.Persist {
		t.Error("expected Store.Persist to be false by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if config.Logging.Format != "text" {
		t.Errorf("expected Logging.Format 'text', got '%s'", config.Logging.Format)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
simulation:
  workers: 4
  seed: 18446744073709551615

output:
  delimiter: ";"
  quoting: all
  concat_names: "/"
  archive_keep: 5

store:
  path: /tmp/runs.db
  persist: true

logging:
  level: trace
  format: pretty
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Simulation.Workers != 4 {
		t.Errorf("expected Workers 4, got %d", config.Simulation.Workers)
	}
	if config.Simulation.Seed == nil || *config.Simulation.Seed != 18446744073709551615 {
		t.Errorf("expected max uint64 seed, got %v", config.Simulation.Seed)
	}
	if config.Output.Delimiter != ";" || config.Output.Quoting != "all" || config.Output.ConcatNames != "/" {
		t.Errorf("unexpected output config: %+v", config.Output)
	}
	if config.Output.ArchiveKeep != 5 {
		t.Errorf("expected ArchiveKeep 5, got %d", config.Output.ArchiveKeep)
	}
	if config.Store.Path != "/tmp/runs.db" || !config.Store.Persist {
		t.Errorf("unexpected store config: %+v", config.Store)
	}
	if config.Logging.Level != "trace" || config.Logging.Format != "pretty" {
		t.Errorf("unexpected logging config: %+v", config.Logging)
	}
}

func TestLoadFromFile_PartialKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
	if config.Output.Delimiter != "," {
		t.Errorf("expected default delimiter to survive, got '%s'", config.Output.Delimiter)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
store:
  path: ${TEST_MACROSIM_DIR}/runs.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TEST_MACROSIM_DIR", "/data/macrosim")

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Store.Path != "/data/macrosim/runs.db" {
		t.Errorf("expected expanded path, got '%s'", config.Store.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MACROSIM_WORKERS", "8")
	t.Setenv("MACROSIM_SEED", "99")
	t.Setenv("MACROSIM_LOG_LEVEL", "debug")
	t.Setenv("MACROSIM_LOG_FORMAT", "pretty")
	t.Setenv("MACROSIM_DB_PATH", "/var/lib/macrosim.db")
	t.Setenv("MACROSIM_CSV_DELIMITER", "\t")

	config := Default()
	applyEnvOverrides(config)

	if config.Simulation.Workers != 8 {
		t.Errorf("expected Workers 8, got %d", config.Simulation.Workers)
	}
	if config.Simulation.Seed == nil || *config.Simulation.Seed != 99 {
		t.Errorf("expected Seed 99, got %v", config.Simulation.Seed)
	}
	if config.Logging.Level != "debug" || config.Logging.Format != "pretty" {
		t.Errorf("unexpected logging config: %+v", config.Logging)
	}
	if config.Store.Path != "/var/lib/macrosim.db" {
		t.Errorf("expected DB path override, got '%s'", config.Store.Path)
	}
	if config.Output.Delimiter != "\t" {
		t.Errorf("expected tab delimiter, got %q", config.Output.Delimiter)
	}
}

func TestEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MACROSIM_WORKERS", "many")
	t.Setenv("MACROSIM_SEED", "-3")

	config := Default()
	applyEnvOverrides(config)

	if config.Simulation.Workers != 0 {
		t.Errorf("expected Workers unchanged, got %d", config.Simulation.Workers)
	}
	if config.Simulation.Seed != nil {
		t.Errorf("expected Seed unchanged, got %d", *config.Simulation.Seed)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MacrosimConfig)
	}{
		{"negative workers", func(c *MacrosimConfig) { c.Simulation.Workers = -1 }},
		{"empty delimiter", func(c *MacrosimConfig) { c.Output.Delimiter = "" }},
		{"long delimiter", func(c *MacrosimConfig) { c.Output.Delimiter = "::" }},
		{"unknown quoting", func(c *MacrosimConfig) { c.Output.Quoting = "sometimes" }},
		{"negative archive_keep", func(c *MacrosimConfig) { c.Output.ArchiveKeep = -2 }},
		{"unknown log level", func(c *MacrosimConfig) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *MacrosimConfig) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	seed := uint64(7)

	config := Default()
	config.Simulation.Seed = &seed
	config.Output.Delimiter = "|"
	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Simulation.Seed == nil || *loaded.Simulation.Seed != 7 || loaded.Output.Delimiter != "|" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestLoad_FromHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("MACROSIM_LOG_LEVEL", "")

	if err := os.MkdirAll(filepath.Join(home, ".macrosim"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, ".macrosim", "config.yaml"), []byte("logging:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected level from home config, got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	invalidYAML := `
output:
  delimiter: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
