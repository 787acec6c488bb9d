package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage macrosim configuration",
		Long: `View and modify macrosim configuration settings.

Configuration is stored in ~/.macrosim/config.yaml. Environment variables
(MACROSIM_WORKERS, MACROSIM_SEED, MACROSIM_LOG_LEVEL, MACROSIM_LOG_FORMAT,
MACROSIM_DB_PATH, MACROSIM_CSV_DELIMITER) and a .env file in the project
root override the file.

Examples:
  macrosim config list                        # Show all settings
  macrosim config get output.delimiter        # Get a specific setting
  macrosim config set simulation.workers 4    # Set a setting
  macrosim config set simulation.seed ""      # Clear the default seed`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

// configKeys lists every settable key in display order.
var configKeys = []string{
	"simulation.workers",
	"simulation.seed",
	"output.delimiter",
	"output.quoting",
	"output.concat_names",
	"output.archive_dir",
	"output.archive_keep",
	"store.path",
	"store.persist",
	"logging.level",
	"logging.format",
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.macrosim/config.yaml):")
			fmt.Fprintln(out)
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-22s %s\n", key+":", displayValue(key, value))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, displayValue(key, value))
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := config.Path()
			if err != nil {
				return err
			}
			// Edit the file contents, not the environment-adjusted view.
			cfg := config.Default()
			if fileCfg, err := config.LoadFromFile(path); err == nil {
				cfg = fileCfg
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.MacrosimConfig, key string) (any, bool) {
	switch key {
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "simulation.seed":
		if cfg.Simulation.Seed == nil {
			return nil, true
		}
		return *cfg.Simulation.Seed, true
	case "output.delimiter":
		return cfg.Output.Delimiter, true
	case "output.quoting":
		return cfg.Output.Quoting, true
	case "output.concat_names":
		return cfg.Output.ConcatNames, true
	case "output.archive_dir":
		return cfg.Output.ArchiveDir, true
	case "output.archive_keep":
		return cfg.Output.ArchiveKeep, true
	case "store.path":
		return cfg.Store.Path, true
	case "store.persist":
		return cfg.Store.Persist, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.format":
		return cfg.Logging.Format, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. Range and
// enum checks are left to Validate.
func setConfigValue(cfg *config.MacrosimConfig, key, value string) error {
	switch key {
	case "simulation.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid workers: %s (must be an integer)", value)
		}
		cfg.Simulation.Workers = n
	case "simulation.seed":
		if value == "" {
			cfg.Simulation.Seed = nil
			return nil
		}
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s (must be a non-negative integer)", value)
		}
		cfg.Simulation.Seed = &n
	case "output.delimiter":
		if value == `\t` {
			value = "\t"
		}
		cfg.Output.Delimiter = value
	case "output.quoting":
		cfg.Output.Quoting = value
	case "output.concat_names":
		cfg.Output.ConcatNames = value
	case "output.archive_dir":
		cfg.Output.ArchiveDir = value
	case "output.archive_keep":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid archive_keep: %s (must be an integer)", value)
		}
		cfg.Output.ArchiveKeep = n
	case "store.path":
		cfg.Store.Path = value
	case "store.persist":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid persist: %s (must be true or false)", value)
		}
		cfg.Store.Persist = b
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// displayValue renders a value for humans, naming unset values.
func displayValue(key string, value any) string {
	switch v := value.(type) {
	case nil:
		return "(not set)"
	case string:
		switch {
		case v == "\t":
			return `\t`
		case v == "" && (key == "store.path" || key == "output.archive_dir"):
			return "(default)"
		case v == "":
			return "(not set)"
		}
		return v
	}
	return fmt.Sprint(value)
}
