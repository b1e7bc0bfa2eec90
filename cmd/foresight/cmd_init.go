package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/foresight/internal/config"
	"github.com/nvandessel/foresight/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a foresight project in the current directory",
		Long: `Create .foresight/ with the scenario catalog (seeded with the built-in
futures) and a config.yaml holding the default settings.

Existing files are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := store.EnsureDir(root)
			if err != nil {
				return err
			}

			configPath := filepath.Join(dir, configFile)
			wroteConfig := false
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				data, err := yaml.Marshal(config.Default())
				if err != nil {
					return fmt.Errorf("failed to encode default config: %w", err)
				}
				if err := os.WriteFile(configPath, data, 0600); err != nil {
					return fmt.Errorf("failed to write %s: %w", configFile, err)
				}
				wroteConfig = true
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Store.List(cmd.Context(), store.ListOptions{})
			if err != nil {
				return fmt.Errorf("failed to read catalog: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"status":    "initialized",
					"path":      dir,
					"database":  a.Store.Path(),
					"config":    configPath,
					"scenarios": len(records),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s/ in %s\n", config.Dir, root)
			fmt.Fprintf(cmd.OutOrStdout(), "  catalog: %s (%d scenarios)\n", a.Store.Path(), len(records))
			if wroteConfig {
				fmt.Fprintf(cmd.OutOrStdout(), "  config:  %s\n", configPath)
			}
			return nil
		},
	}
}
