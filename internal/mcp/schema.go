// Package mcp provides an MCP (Model Context Protocol) server for foresight.
package mcp

import (
	"github.com/nvandessel/foresight/internal/resonance"
	"github.com/nvandessel/foresight/internal/simulate"
)

// FutureInput is an inline scenario supplied with a tool call.
type FutureInput = simulate.FutureInput

// SimulateInput defines the input for the foresight_simulate tool.
type SimulateInput struct {
	Argument    string        `json:"argument" jsonschema:"the proposition or event to push into the field"`
	Steps       int           `json:"steps,omitempty" jsonschema:"number of iterations (default 5, capped at the configured maximum)"`
	UseField    *bool         `json:"use_field,omitempty" jsonschema:"fold current world-news topics into the run (default true)"`
	Seed        *uint64       `json:"seed,omitempty" jsonschema:"optional seed for a reproducible run"`
	Temperature float64       `json:"temperature,omitempty" jsonschema:"noise scale between 0.1 and 2.0 (default 1.0)"`
	Futures     []FutureInput `json:"futures,omitempty" jsonschema:"optional scenario set replacing the active catalog for this run"`
}

// SnapshotItem is one iteration of a run.
type SnapshotItem struct {
	Iteration          int                `json:"iteration"`
	Argument           string             `json:"argument"`
	Realized           string             `json:"realized"`
	Feedback           string             `json:"feedback"`
	ProbabilitiesAfter map[string]float64 `json:"probs_after"`
}

// SimulateOutput defines the output for the foresight_simulate tool.
type SimulateOutput struct {
	Argument   string                    `json:"argument"`
	Translated string                    `json:"translated_argument,omitempty" jsonschema:"the argument as the engine saw it, when translated"`
	Steps      int                       `json:"steps"`
	Dominant   string                    `json:"dominant" jsonschema:"most probable scenario after the run"`
	Entropy    float64                   `json:"entropy" jsonschema:"Shannon entropy of the final distribution in bits"`
	Futures    []resonance.ScenarioState `json:"futures" jsonschema:"final distribution ranked by probability"`
	History    []SnapshotItem            `json:"history"`
	Field      simulate.FieldSummary     `json:"field_context"`
	Summary    string                    `json:"summary" jsonschema:"human-readable result message"`
}

// StepInput defines the input for the foresight_step tool.
type StepInput struct {
	Argument     string             `json:"argument,omitempty" jsonschema:"optional argument; omit for internal feedback only"`
	UseField     *bool              `json:"use_field,omitempty" jsonschema:"fold current world-news topics into the step (default true)"`
	CurrentProbs map[string]float64 `json:"current_probs,omitempty" jsonschema:"probabilities to resume from, keyed by scenario name"`
	Seed         *uint64            `json:"seed,omitempty" jsonschema:"optional seed for a reproducible step"`
}

// StepOutput defines the output for the foresight_step tool.
type StepOutput struct {
	Iteration           int                       `json:"iteration"`
	Argument            string                    `json:"argument"`
	Translated          string                    `json:"translated_argument,omitempty"`
	Realized            string                    `json:"realized" jsonschema:"scenario collapsed into this step"`
	Feedback            string                    `json:"feedback" jsonschema:"feedback text generated from the realized scenario"`
	ProbabilitiesBefore map[string]float64        `json:"probs_before"`
	ProbabilitiesAfter  map[string]float64        `json:"probs_after"`
	Dominant            string                    `json:"dominant"`
	Entropy             float64                   `json:"entropy"`
	Futures             []resonance.ScenarioState `json:"futures"`
}

// BattleInput defines the input for the foresight_battle tool.
type BattleInput struct {
	ArgumentA string        `json:"argument_a" jsonschema:"first competing argument"`
	ArgumentB string        `json:"argument_b" jsonschema:"second competing argument"`
	Rounds    int           `json:"rounds,omitempty" jsonschema:"number of rounds (default 5, capped at the configured maximum)"`
	UseField  *bool         `json:"use_field,omitempty" jsonschema:"fold current world-news topics into every round (default true)"`
	Seed      *uint64       `json:"seed,omitempty" jsonschema:"optional seed for a reproducible battle"`
	Futures   []FutureInput `json:"futures,omitempty" jsonschema:"optional scenario set replacing the active catalog"`
}

// BattleOutput defines the output for the foresight_battle tool.
type BattleOutput struct {
	Winner   string                    `json:"winner" jsonschema:"A, B or draw"`
	A        resonance.BattleSide      `json:"a"`
	B        resonance.BattleSide      `json:"b"`
	Rounds   int                       `json:"rounds"`
	Realized []string                  `json:"realized" jsonschema:"scenario realized in each round"`
	Dominant string                    `json:"dominant"`
	Entropy  float64                   `json:"entropy"`
	Futures  []resonance.ScenarioState `json:"futures"`
	Field    simulate.FieldSummary     `json:"field_context"`
	Summary  string                    `json:"summary"`
}

// FieldInput defines the input for the foresight_field tool.
type FieldInput struct{}

// FieldOutput defines the output for the foresight_field tool.
type FieldOutput struct {
	Status       string   `json:"status" jsonschema:"ok or no_data"`
	HotTopics    []string `json:"hot_topics"`
	CrisisLevel  float64  `json:"crisis_level" jsonschema:"share of crisis headlines scaled to 0-10"`
	Headlines    []string `json:"headlines"`
	FeedsFetched int      `json:"feeds_fetched"`
}

// Scenario catalog actions.
const (
	ActionList    = "list"
	ActionAdd     = "add"
	ActionEnable  = "enable"
	ActionDisable = "disable"
	ActionDelete  = "delete"
)

// ScenariosInput defines the input for the foresight_scenarios tool.
type ScenariosInput struct {
	Action      string   `json:"action,omitempty" jsonschema:"one of list (default), add, enable, disable, delete"`
	ID          string   `json:"id,omitempty" jsonschema:"scenario ID for enable, disable and delete"`
	Name        string   `json:"name,omitempty" jsonschema:"scenario name for add"`
	Keywords    []string `json:"keywords,omitempty" jsonschema:"resonance keywords for add"`
	CoreLogic   string   `json:"core_logic,omitempty" jsonschema:"governing assumption for add"`
	Description string   `json:"description,omitempty" jsonschema:"optional description for add"`
	ActiveOnly  bool     `json:"active_only,omitempty" jsonschema:"list only active scenarios"`
}

// ScenarioItem is a catalog entry as reported by foresight_scenarios.
type ScenarioItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Keywords    []string `json:"keywords"`
	CoreLogic   string   `json:"core_logic"`
	Description string   `json:"description,omitempty"`
	IsDefault   bool     `json:"is_default"`
	IsActive    bool     `json:"is_active"`
}

// ScenariosOutput defines the output for the foresight_scenarios tool.
type ScenariosOutput struct {
	Action    string         `json:"action"`
	Scenarios []ScenarioItem `json:"scenarios,omitempty"`
	Scenario  *ScenarioItem  `json:"scenario,omitempty"`
	Count     int            `json:"count"`
	Message   string         `json:"message"`
}
