package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		logAtDebug bool
	}{
		{"info", false},
		{"debug", true},
		{"trace", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("collapse drawn", "realized", "Fragmentation")
			if got := strings.Contains(buf.String(), "collapse drawn"); got != tt.logAtDebug {
				t.Errorf("debug visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("simulation finished")
			if !strings.Contains(buf.String(), "simulation finished") {
				t.Errorf("info message missing (buf: %q)", buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "feedback text", "text", "Evidence of ai confirms")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "json", &buf)
	logger.Info("run", "steps", 5)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "run" || rec["steps"] != float64(5) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewDecisionLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "info")
	if dl != nil {
		t.Error("expected nil DecisionLogger at info level")
	}

	dl.Log(map[string]any{"event": "snapshot"})

	if _, err := os.Stat(filepath.Join(dir, DecisionFile)); err == nil {
		t.Error("decisions.jsonl should not exist at info level")
	}
}

func TestDecisionLogger_WritesLines(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	if dl == nil {
		t.Fatal("expected DecisionLogger at debug level")
	}
	defer dl.Close()

	dl.Log(map[string]any{"event": "snapshot", "iteration": 1, "realized": "Green-Symbiosis"})
	dl.Log(map[string]any{"event": "snapshot", "iteration": 2, "realized": "Fragmentation"})

	data, err := os.ReadFile(filepath.Join(dir, DecisionFile))
	if err != nil {
		t.Fatalf("failed to read decisions.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("failed to parse line: %v", err)
	}
	if second["realized"] != "Fragmentation" || second["iteration"] != float64(2) {
		t.Errorf("unexpected entry %v", second)
	}
	if _, ok := second["time"]; !ok {
		t.Error("expected time field")
	}
}

func TestDecisionLogger_DoesNotMutateCallerMap(t *testing.T) {
	dl := NewDecisionLogger(t.TempDir(), "debug")
	defer dl.Close()

	event := map[string]any{"event": "snapshot"}
	dl.Log(event)
	if _, ok := event["time"]; ok {
		t.Error("Log() must not inject time into the caller's map")
	}
}

func TestDecisionLogger_NilAndClosed(t *testing.T) {
	var nilLogger *DecisionLogger
	nilLogger.Log(map[string]any{"event": "noop"})
	nilLogger.Close()

	dl := NewDecisionLogger(filepath.Join(t.TempDir(), "nested", "dir"), "trace")
	if dl == nil {
		t.Fatal("expected DecisionLogger when dir needs creation")
	}
	dl.Close()
	dl.Log(map[string]any{"event": "after_close"})
	dl.Close()
}

func TestDecisionLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	defer dl.Close()
	dl.Log(map[string]any{"event": "perm"})

	info, err := os.Stat(filepath.Join(dir, DecisionFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}
