package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/foresight/internal/app"
	"github.com/nvandessel/foresight/internal/config"
	"github.com/nvandessel/foresight/internal/logging"
	"github.com/nvandessel/foresight/internal/store"
)

// configFile is the name of the config file inside a .foresight directory.
const configFile = "config.yaml"

// resolveConfigPath picks --config, then the project-local config, then the
// per-user one.
func resolveConfigPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	root, _ := cmd.Flags().GetString("root")
	local := filepath.Join(store.LocalDir(root), configFile)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	if path, err := config.DefaultPath(); err == nil {
		return path
	}
	return ""
}

// loadConfig loads and validates the effective configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithPath(resolveConfigPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openApp loads config and opens the project under --root. Logs go to
// stderr so stdout stays clean for JSON and the MCP transport.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, _ := cmd.Flags().GetString("root")
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

	a, err := app.Open(cmd.Context(), root, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}
	return a, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// seedFlag returns the --seed value when it was set.
func seedFlag(cmd *cobra.Command) *uint64 {
	if !cmd.Flags().Changed("seed") {
		return nil
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	return &seed
}

// useFieldFlag maps --no-field to the service's optional use_field.
func useFieldFlag(cmd *cobra.Command) *bool {
	noField, _ := cmd.Flags().GetBool("no-field")
	use := !noField
	return &use
}
