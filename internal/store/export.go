package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ExportJSONL writes every catalog entry as one JSON object per line and
// returns the number written.
func ExportJSONL(ctx context.Context, s ScenarioStore, w io.Writer) (int, error) {
	records, err := s.List(ctx, ListOptions{})
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return 0, fmt.Errorf("failed to encode scenario %s: %w", r.Name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush export: %w", err)
	}
	return len(records), nil
}

// ImportResult summarizes an ImportJSONL run.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportJSONL reads scenarios written by ExportJSONL and creates each one as
// a user scenario. Lines that fail to parse or validate, defaults, and names
// already in the catalog are skipped. Inactive entries stay inactive.
func ImportJSONL(ctx context.Context, s ScenarioStore, r io.Reader, logger *slog.Logger) (ImportResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var res ImportResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec ScenarioRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping unparseable scenario line", "line", lineNum, "error", err)
			res.Skipped++
			continue
		}
		if rec.IsDefault {
			res.Skipped++
			continue
		}

		created, err := s.Create(ctx, ScenarioInput{
			Name:        rec.Name,
			Keywords:    rec.Keywords,
			CoreLogic:   rec.CoreLogic,
			Description: rec.Description,
		})
		if errors.Is(err, ErrDuplicateName) || errors.Is(err, ErrInvalidScenario) {
			logger.Warn("skipping scenario", "line", lineNum, "name", rec.Name, "error", err)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to import line %d: %w", lineNum, err)
		}
		if !rec.IsActive {
			if _, err := s.SetActive(ctx, created.ID, false); err != nil {
				return res, fmt.Errorf("failed to deactivate %s: %w", created.Name, err)
			}
		}
		res.Imported++
	}

	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scanner error: %w", err)
	}
	return res, nil
}
