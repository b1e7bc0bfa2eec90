// Package backup writes and restores checksummed, compressed snapshots of
// the scenario catalog and prunes old ones by retention policy.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/foresight/internal/config"
	"github.com/nvandessel/foresight/internal/store"
)

const (
	filePrefix = "foresight-backup-"
	fileExt    = ".jsonl.gz"
)

// RestoreResult summarizes a Restore run.
type RestoreResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Toggled  int `json:"toggled"`
}

// DefaultDir returns the default backup directory (~/.foresight/backups/).
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, config.Dir, "backups"), nil
}

// Dir returns the configured backup directory or DefaultDir.
func Dir(cfg config.BackupConfig) (string, error) {
	if cfg.Dir != "" {
		return cfg.Dir, nil
	}
	return DefaultDir()
}

// GeneratePath creates a timestamped backup filename in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format("20060102-150405")+fileExt)
}

// Backup writes every catalog entry, defaults included, to path.
func Backup(ctx context.Context, s store.ScenarioStore, path string) (*Header, error) {
	records, err := s.List(ctx, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	header, err := Write(path, Header{CreatedAt: time.Now().UTC()}, records)
	if err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return header, nil
}

// Restore merges a backup into s. Custom scenarios are created unless their
// name is taken; built-in scenarios present in both keep the backup's
// active flag.
func Restore(ctx context.Context, s store.ScenarioStore, path string, logger *slog.Logger) (*RestoreResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	_, records, err := Read(path)
	if err != nil {
		return nil, err
	}

	current, err := s.List(ctx, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defaults := make(map[string]store.ScenarioRecord)
	for _, r := range current {
		if r.IsDefault {
			defaults[strings.ToLower(r.Name)] = r
		}
	}

	result := &RestoreResult{}
	var custom bytes.Buffer
	enc := json.NewEncoder(&custom)
	for _, r := range records {
		if !r.IsDefault {
			if err := enc.Encode(r); err != nil {
				return nil, fmt.Errorf("encoding scenario %s: %w", r.Name, err)
			}
			continue
		}
		existing, ok := defaults[strings.ToLower(r.Name)]
		if !ok || existing.IsActive == r.IsActive {
			continue
		}
		if _, err := s.SetActive(ctx, existing.ID, r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to restore state of %s: %w", r.Name, err)
		}
		logger.Debug("restored default scenario state", "name", r.Name, "active", r.IsActive)
		result.Toggled++
	}

	imported, err := store.ImportJSONL(ctx, s, &custom, logger)
	result.Imported = imported.Imported
	result.Skipped = imported.Skipped
	if err != nil {
		return result, err
	}
	return result, nil
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}
