package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/nvandessel/foresight/internal/store"
)

// isolateEnv points HOME at a temp directory so no real ~/.foresight is read,
// and disables field fetching so no test touches the network.
func isolateEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	t.Setenv("FORESIGHT_FIELD_ENABLED", "false")
	return tmpDir
}

// runCmd executes sub under a fresh root command and returns its stdout.
func runCmd(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	rootCmd.AddCommand(sub)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
}

func TestNewVersionCmd(t *testing.T) {
	out, err := runCmd(t, newVersionCmd(), "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var got map[string]string
	decodeJSON(t, out, &got)
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}

	out, err = runCmd(t, newVersionCmd(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "foresight version ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInitCmd(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newInitCmd(), "init", "--root", tmpDir, "--json")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	var got map[string]any
	decodeJSON(t, out, &got)
	if got["status"] != "initialized" {
		t.Errorf("status = %v", got["status"])
	}
	if got["scenarios"] != float64(5) {
		t.Errorf("scenarios = %v, want 5", got["scenarios"])
	}

	configPath := filepath.Join(store.LocalDir(tmpDir), configFile)
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config.yaml not written: %v", err)
	}
	if _, err := os.Stat(store.DatabasePath(tmpDir)); err != nil {
		t.Fatalf("catalog not created: %v", err)
	}

	// A second init keeps the existing config.
	if err := os.WriteFile(configPath, []byte("engine:\n  steps: 3\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, newInitCmd(), "init", "--root", tmpDir); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	data, _ := os.ReadFile(configPath)
	if string(data) != "engine:\n  steps: 3\n" {
		t.Errorf("config was overwritten: %q", data)
	}
}

func TestSimulateCmd_JSON(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newSimulateCmd(), "simulate", "AI and quantum breakthroughs",
		"--root", tmpDir, "--steps", "3", "--seed", "42", "--json")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	var res struct {
		Steps      int `json:"steps"`
		History    []map[string]any
		FinalState struct {
			Dominant string           `json:"dominant"`
			Futures  []map[string]any `json:"futures"`
		} `json:"final_state"`
		FieldContext struct {
			Status string `json:"status"`
		} `json:"field_context"`
	}
	decodeJSON(t, out, &res)
	if res.Steps != 3 || len(res.History) != 3 {
		t.Errorf("expected 3 steps, got %d (%d history)", res.Steps, len(res.History))
	}
	if len(res.FinalState.Futures) != 5 || res.FinalState.Dominant == "" {
		t.Errorf("unexpected final state: %+v", res.FinalState)
	}
	if res.FieldContext.Status != "not_fetched" {
		t.Errorf("field status = %q, want not_fetched", res.FieldContext.Status)
	}

	again, err := runCmd(t, newSimulateCmd(), "simulate", "AI and quantum breakthroughs",
		"--root", tmpDir, "--steps", "3", "--seed", "42", "--json")
	if err != nil {
		t.Fatalf("second simulate failed: %v", err)
	}
	var res2 struct {
		FinalState struct {
			Dominant string `json:"dominant"`
		} `json:"final_state"`
	}
	decodeJSON(t, again, &res2)
	if res2.FinalState.Dominant != res.FinalState.Dominant {
		t.Errorf("same seed gave %q then %q", res.FinalState.Dominant, res2.FinalState.Dominant)
	}
}

func TestSimulateCmd_Text(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newSimulateCmd(), "simulate", "community gardens spread", "--root", tmpDir, "--steps", "2")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	for _, want := range []string{"Simulation", "History (2 steps)", "Final state", "Dominant:", "Entropy:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulateCmd_FuturesFile(t *testing.T) {
	tmpDir := isolateEnv(t)
	path := filepath.Join(tmpDir, "futures.yaml")
	yamlData := `- name: Flood
  keywords: [river, rain]
  core_logic: water wins
- name: Drought
  keywords: [dry]
  core_logic: water loses
  probability: 3
`
	if err := os.WriteFile(path, []byte(yamlData), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, newSimulateCmd(), "simulate", "heavy rain", "--root", tmpDir,
		"--futures-file", path, "--steps", "1", "--json")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	var res struct {
		FinalState struct {
			Futures []struct {
				Name string `json:"name"`
			} `json:"futures"`
		} `json:"final_state"`
	}
	decodeJSON(t, out, &res)
	if len(res.FinalState.Futures) != 2 {
		t.Errorf("expected 2 futures from file, got %d", len(res.FinalState.Futures))
	}

	if _, err := runCmd(t, newSimulateCmd(), "simulate", "x", "--root", tmpDir,
		"--futures-file", filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing futures file")
	}
}

func TestSimulateCmd_RequiresArgument(t *testing.T) {
	tmpDir := isolateEnv(t)

	if _, err := runCmd(t, newSimulateCmd(), "simulate", "--root", tmpDir); err == nil {
		t.Error("expected error without argument")
	}
	if _, err := runCmd(t, newSimulateCmd(), "simulate", "   ", "--root", tmpDir); err == nil {
		t.Error("expected error for blank argument")
	}
}

func TestStepCmd(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newStepCmd(), "step", "--root", tmpDir, "--seed", "1", "--json",
		"--probs", "Fragmentation=0.9,Tech-Acceleration=0.025,Green-Symbiosis=0.025,Control-Consolidation=0.025,Resilient-Adaptation=0.025")
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	var res struct {
		Iteration   int                `json:"iteration"`
		Argument    string             `json:"argument"`
		ProbsBefore map[string]float64 `json:"probs_before"`
	}
	decodeJSON(t, out, &res)
	if res.Iteration != 1 {
		t.Errorf("iteration = %d, want 1", res.Iteration)
	}
	if res.ProbsBefore["Fragmentation"] < 0.8 {
		t.Errorf("expected restored probabilities, got %v", res.ProbsBefore)
	}

	if _, err := runCmd(t, newStepCmd(), "step", "--root", tmpDir, "--probs", "Fragmentation=lots"); err == nil {
		t.Error("expected error for invalid probability")
	}
}

func TestBattleCmd(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newBattleCmd(), "battle", "AI and robots", "local communities",
		"--root", tmpDir, "--rounds", "2", "--seed", "9", "--json")
	if err != nil {
		t.Fatalf("battle failed: %v", err)
	}
	var res struct {
		Rounds []map[string]any `json:"rounds"`
		Winner string           `json:"winner"`
	}
	decodeJSON(t, out, &res)
	if len(res.Rounds) != 2 {
		t.Errorf("expected 2 rounds, got %d", len(res.Rounds))
	}
	if res.Winner == "" {
		t.Error("expected a winner or draw")
	}

	text, err := runCmd(t, newBattleCmd(), "battle", "AI and robots", "local communities", "--root", tmpDir, "--rounds", "2")
	if err != nil {
		t.Fatalf("battle failed: %v", err)
	}
	if !strings.Contains(text, "Battle (2 rounds)") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

func TestStateCmd(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newStateCmd(), "state", "--root", tmpDir, "--json")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	var res struct {
		State struct {
			Futures []map[string]any `json:"futures"`
			Entropy float64          `json:"entropy"`
		} `json:"state"`
	}
	decodeJSON(t, out, &res)
	if len(res.State.Futures) != 5 {
		t.Errorf("expected 5 futures, got %d", len(res.State.Futures))
	}
	if res.State.Entropy < 2.32 || res.State.Entropy > 2.33 {
		t.Errorf("entropy = %v, want log2(5)", res.State.Entropy)
	}
}

func TestFieldCmd_Disabled(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newFieldCmd(), "field", "--root", tmpDir, "--json")
	if err != nil {
		t.Fatalf("field failed: %v", err)
	}
	var res map[string]any
	decodeJSON(t, out, &res)
	if res["status"] != "no_data" {
		t.Errorf("status = %v, want no_data", res["status"])
	}
}

func TestScenariosCmd_Lifecycle(t *testing.T) {
	tmpDir := isolateEnv(t)

	out, err := runCmd(t, newScenariosCmd(), "scenarios", "add", "Deep Sea", "--root", tmpDir,
		"--keywords", "ocean,reef", "--logic", "the oceans set the agenda", "--json")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	var added struct {
		Future store.ScenarioRecord `json:"future"`
	}
	decodeJSON(t, out, &added)
	if added.Future.Name != "Deep-Sea" || !added.Future.IsActive {
		t.Fatalf("unexpected record: %+v", added.Future)
	}
	id := added.Future.ID

	if _, err := runCmd(t, newScenariosCmd(), "scenarios", "add", "deep-sea", "--root", tmpDir,
		"--keywords", "x", "--logic", "dup"); err == nil {
		t.Error("expected duplicate name error")
	}

	if _, err := runCmd(t, newScenariosCmd(), "scenarios", "disable", id, "--root", tmpDir); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	out, err = runCmd(t, newScenariosCmd(), "scenarios", "list", "--active", "--root", tmpDir, "--json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var list struct {
		Count int `json:"count"`
	}
	decodeJSON(t, out, &list)
	if list.Count != 5 {
		t.Errorf("active count = %d, want 5", list.Count)
	}

	text, err := runCmd(t, newScenariosCmd(), "scenarios", "list", "--root", tmpDir)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(text, "Scenarios (6)") || !strings.Contains(text, "[default]") {
		t.Errorf("unexpected list output:\n%s", text)
	}

	exportPath := filepath.Join(tmpDir, "catalog.jsonl")
	if _, err := runCmd(t, newScenariosCmd(), "scenarios", "export", exportPath, "--root", tmpDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	other := filepath.Join(tmpDir, "other")
	out, err = runCmd(t, newScenariosCmd(), "scenarios", "import", exportPath, "--root", other, "--json")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var imported store.ImportResult
	decodeJSON(t, out, &imported)
	if imported.Imported != 1 {
		t.Errorf("imported = %d, want 1", imported.Imported)
	}

	if _, err := runCmd(t, newScenariosCmd(), "scenarios", "delete", id, "--root", tmpDir); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := runCmd(t, newScenariosCmd(), "scenarios", "delete", id, "--root", tmpDir); err == nil {
		t.Error("expected error deleting a missing scenario")
	}
}

func TestBackupCmd_RoundTrip(t *testing.T) {
	tmpDir := isolateEnv(t)

	if _, err := runCmd(t, newScenariosCmd(), "scenarios", "add", "Orbital", "--root", tmpDir,
		"--keywords", "orbit,launch", "--logic", "space first"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	out, err := runCmd(t, newBackupCmd(), "backup", "--root", tmpDir, "--json")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	var created struct {
		Path          string `json:"path"`
		ScenarioCount int    `json:"scenario_count"`
	}
	decodeJSON(t, out, &created)
	wantDir := filepath.Join(os.Getenv("HOME"), ".foresight", "backups")
	if filepath.Dir(created.Path) != wantDir || created.ScenarioCount != 6 {
		t.Fatalf("unexpected backup: %+v", created)
	}

	out, err = runCmd(t, newBackupCmd(), "backup", "list", "--root", tmpDir, "--json")
	if err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	var listed struct {
		Count int `json:"count"`
	}
	decodeJSON(t, out, &listed)
	if listed.Count != 1 {
		t.Errorf("backup count = %d, want 1", listed.Count)
	}

	if _, err := runCmd(t, newBackupCmd(), "backup", "verify", created.Path); err != nil {
		t.Errorf("verify failed: %v", err)
	}

	other := filepath.Join(tmpDir, "other")
	out, err = runCmd(t, newRestoreCmd(), "restore", created.Path, "--root", other, "--json")
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	var restored struct {
		Imported int `json:"imported"`
	}
	decodeJSON(t, out, &restored)
	if restored.Imported != 1 {
		t.Errorf("restored = %d, want 1", restored.Imported)
	}
}

func TestBackupCmd_RejectsOutsidePath(t *testing.T) {
	tmpDir := isolateEnv(t)

	_, err := runCmd(t, newBackupCmd(), "backup", "--root", tmpDir,
		"--output", filepath.Join(t.TempDir(), "elsewhere.jsonl.gz"))
	if err == nil || !strings.Contains(err.Error(), "backup path rejected") {
		t.Errorf("expected rejection, got %v", err)
	}

	_, err = runCmd(t, newRestoreCmd(), "restore", "/etc/passwd", "--root", tmpDir)
	if err == nil || !strings.Contains(err.Error(), "restore path rejected") {
		t.Errorf("expected rejection, got %v", err)
	}
}

func TestConfigShow_RedactsAPIKey(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-abcdefghijklmnop")

	out, err := runCmd(t, newConfigCmd(), "config", "show", "--root", tmpDir)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(out, "sk-abcdefghijklmnop") {
		t.Error("API key leaked into config output")
	}
	if !strings.Contains(out, "sk-a...mnop") {
		t.Errorf("expected redacted key in output:\n%s", out)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	tmpDir := isolateEnv(t)

	if _, err := runCmd(t, newStateCmd(), "state", "--root", tmpDir, "--log-level", "loud"); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestParseProbs(t *testing.T) {
	got, err := parseProbs(map[string]string{" A ": "0.5", "B": "2"})
	if err != nil {
		t.Fatalf("parseProbs failed: %v", err)
	}
	if got["A"] != 0.5 || got["B"] != 2 {
		t.Errorf("parseProbs = %v", got)
	}

	if got, err := parseProbs(nil); err != nil || got != nil {
		t.Errorf("parseProbs(nil) = %v, %v", got, err)
	}
	if _, err := parseProbs(map[string]string{"A": "-1"}); err == nil {
		t.Error("expected error for negative probability")
	}
}
