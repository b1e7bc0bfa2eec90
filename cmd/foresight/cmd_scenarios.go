package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/foresight/internal/store"
)

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scenarios",
		Aliases: []string{"futures"},
		Short:   "Manage the scenario catalog",
		Long: `List and edit the catalog of futures that simulations compete over.

The five built-in scenarios can be disabled but not deleted.

Examples:
  foresight scenarios list
  foresight scenarios add "Deep Sea" --keywords ocean,reef --logic "the oceans set the agenda"
  foresight scenarios disable <id>
  foresight scenarios export > catalog.jsonl
  foresight scenarios import catalog.jsonl`,
	}

	cmd.AddCommand(
		newScenariosListCmd(),
		newScenariosAddCmd(),
		newScenariosToggleCmd("enable", true),
		newScenariosToggleCmd("disable", false),
		newScenariosDeleteCmd(),
		newScenariosExportCmd(),
		newScenariosImportCmd(),
	)
	return cmd
}

func newScenariosListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			activeOnly, _ := cmd.Flags().GetBool("active")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Store.List(cmd.Context(), store.ListOptions{ActiveOnly: activeOnly})
			if err != nil {
				return fmt.Errorf("failed to list scenarios: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"futures": records,
					"count":   len(records),
				})
			}
			renderScenarios(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().Bool("active", false, "Only show active scenarios")
	return cmd
}

func newScenariosAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			keywords, _ := cmd.Flags().GetStringSlice("keywords")
			logic, _ := cmd.Flags().GetString("logic")
			description, _ := cmd.Flags().GetString("description")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Store.Create(cmd.Context(), store.ScenarioInput{
				Name:        args[0],
				Keywords:    keywords,
				CoreLogic:   logic,
				Description: description,
			})
			if err != nil {
				return fmt.Errorf("failed to add scenario: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{"future": rec, "status": "created"})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added scenario %s (%s)\n", rec.Name, rec.ID)
			return nil
		},
	}
	cmd.Flags().StringSlice("keywords", nil, "Comma-separated resonance keywords (required)")
	cmd.Flags().String("logic", "", "Core logic of the scenario (required)")
	cmd.Flags().String("description", "", "Optional description")
	return cmd
}

func newScenariosToggleCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Store.SetActive(cmd.Context(), args[0], active)
			if err != nil {
				return fmt.Errorf("failed to %s scenario: %w", use, err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{"future": rec, "status": "ok"})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scenario %s is now %s\n", rec.Name, map[bool]string{true: "active", false: "inactive"}[rec.IsActive])
			return nil
		},
	}
}

func newScenariosDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a custom scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete scenario: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]string{"id": args[0], "status": "deleted"})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted scenario %s\n", args[0])
			return nil
		},
	}
}

func newScenariosExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export custom scenarios as JSONL (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.OpenFile(args[0], os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := store.ExportJSONL(cmd.Context(), a.Store, w)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			if len(args) == 1 && args[0] != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d scenarios to %s\n", n, args[0])
			}
			return nil
		},
	}
}

func newScenariosImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import scenarios from JSONL (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				defer f.Close()
				r = f
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := store.ImportJSONL(cmd.Context(), a.Store, r, a.Logger)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d scenarios (%d skipped)\n", res.Imported, res.Skipped)
			return nil
		},
	}
}
