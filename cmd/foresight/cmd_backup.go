package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/foresight/internal/backup"
	"github.com/nvandessel/foresight/internal/pathutil"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the scenario catalog",
		Long: `Write the whole scenario catalog, built-in scenarios included, to a
checksummed, compressed backup file.

Default location: ~/.foresight/backups/foresight-backup-YYYYMMDD-HHMMSS.jsonl.gz
Old backups are pruned by the backup.max_count and backup.max_age settings.

Examples:
  foresight backup
  foresight backup --output .foresight/backups/before-demo.jsonl.gz
  foresight backup list
  foresight backup verify <file>
  foresight restore <file>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if outputPath == "" {
				dir, err := backup.Dir(a.Config.Backup)
				if err != nil {
					return err
				}
				outputPath = backup.GeneratePath(dir, time.Now())
			} else if err := checkBackupPath(root, a.Config.Backup.Dir, outputPath); err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			header, err := backup.Backup(cmd.Context(), a.Store, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var pruned []string
			policy, err := backup.PolicyFromConfig(a.Config.Backup)
			if err != nil {
				return err
			}
			if policy != nil {
				pruned, err = backup.ApplyRetention(filepath.Dir(outputPath), policy)
				if err != nil {
					a.Logger.Warn("failed to apply backup retention", "error", err)
				}
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"path":           outputPath,
					"scenario_count": header.ScenarioCount,
					"checksum":       header.Checksum,
					"pruned":         len(pruned),
					"status":         "created",
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d scenarios\n", header.ScenarioCount)
			fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Pruned %d old backups\n", len(pruned))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file (default: auto-generated in ~/.foresight/backups/)")
	cmd.AddCommand(newBackupListCmd(), newBackupVerifyCmd())
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups in the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := backup.Dir(cfg.Backup)
			if err != nil {
				return err
			}
			backups, err := backup.List(dir)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"dir":     dir,
					"backups": backups,
					"count":   len(backups),
				})
			}
			renderBackups(cmd.OutOrStdout(), dir, backups)
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.ReadHeader(args[0])
			if err != nil {
				return fmt.Errorf("invalid backup: %w", err)
			}
			if err := backup.VerifyChecksum(args[0]); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"path":           args[0],
					"created_at":     header.CreatedAt,
					"scenario_count": header.ScenarioCount,
					"status":         "ok",
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d scenarios, created %s\n",
				header.ScenarioCount, header.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Merge a catalog backup into the project",
		Long: `Restore scenarios from a backup. Custom scenarios whose name is already
in the catalog are skipped; built-in scenarios take the backup's
active/inactive state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := checkBackupPath(root, a.Config.Backup.Dir, args[0]); err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			res, err := backup.Restore(cmd.Context(), a.Store, args[0], a.Logger)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d scenarios (%d skipped, %d built-ins updated)\n",
				res.Imported, res.Skipped, res.Toggled)
			return nil
		},
	}
}

func checkBackupPath(root, configured, path string) error {
	allowed, err := pathutil.AllowedBackupDirs(root, configured)
	if err != nil {
		return err
	}
	return pathutil.ValidatePath(path, allowed)
}
