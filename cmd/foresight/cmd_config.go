package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect foresight configuration",
		Long: `Configuration is read from --config, then .foresight/config.yaml under
--root, then ~/.foresight/config.yaml. Environment variables override
file values (FORESIGHT_*, OPENAI_API_KEY, PORT).`,
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// Redact API key before serialization to prevent leakage
			redacted := *cfg
			redacted.Translation.APIKey = cfg.Translation.RedactedAPIKey()

			if jsonOut {
				return writeJSON(cmd, redacted)
			}

			data, err := yaml.Marshal(redacted)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if path := resolveConfigPath(cmd); path != "" {
				fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("# source: "+path))
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
