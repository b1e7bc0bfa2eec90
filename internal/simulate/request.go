package simulate

import (
	"fmt"

	"github.com/nvandessel/foresight/internal/field"
	"github.com/nvandessel/foresight/internal/resonance"
	"github.com/nvandessel/foresight/internal/sanitize"
)

// FutureInput is an inline scenario definition supplied with a request.
// A missing probability counts as 1.0.
type FutureInput struct {
	Name        string   `json:"name" yaml:"name"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	CoreLogic   string   `json:"core_logic" yaml:"core_logic"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`
}

// Request configures a multi-step simulation.
type Request struct {
	Argument string `json:"argument"`

	// Steps is clamped to [1, MaxSteps]; zero uses the configured default.
	Steps int `json:"steps,omitempty"`

	// UseField fetches field context when nil or true.
	UseField *bool `json:"use_field,omitempty"`

	Seed        *uint64       `json:"seed,omitempty"`
	Futures     []FutureInput `json:"futures,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// StepRequest runs a single step against client-held probabilities.
type StepRequest struct {
	// Argument may be empty, in which case the step is driven by feedback only.
	Argument     string             `json:"argument"`
	UseField     *bool              `json:"use_field,omitempty"`
	CurrentProbs map[string]float64 `json:"current_probs,omitempty"`
	Seed         *uint64            `json:"seed,omitempty"`
	Temperature  float64            `json:"temperature,omitempty"`
}

// BattleRequest pits two arguments against each other.
type BattleRequest struct {
	ArgumentA   string        `json:"argument_a"`
	ArgumentB   string        `json:"argument_b"`
	Rounds      int           `json:"rounds,omitempty"`
	UseField    *bool         `json:"use_field,omitempty"`
	Seed        *uint64       `json:"seed,omitempty"`
	Futures     []FutureInput `json:"futures,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// FieldSummary is the compact field context reported with results.
type FieldSummary struct {
	HotTopics      []string `json:"hot_topics"`
	CrisisLevel    float64  `json:"crisis_level"`
	HeadlinesCount int      `json:"headlines_count"`
	Status         string   `json:"status"`
}

// StatusNotFetched marks a FieldSummary for a run without field context.
const StatusNotFetched = "not_fetched"

func summarize(c *field.Context) FieldSummary {
	if c == nil {
		return FieldSummary{HotTopics: []string{}, Status: StatusNotFetched}
	}
	topics := c.HotTopics
	if topics == nil {
		topics = []string{}
	}
	return FieldSummary{
		HotTopics:      topics,
		CrisisLevel:    c.CrisisLevel,
		HeadlinesCount: len(c.Headlines),
		Status:         c.Status,
	}
}

// Result is the outcome of Simulate.
type Result struct {
	Argument   string `json:"argument"`
	Translated string `json:"translated_argument,omitempty"`
	Steps      int    `json:"steps"`

	FinalState   resonance.State      `json:"final_state"`
	History      []resonance.Snapshot `json:"history"`
	FieldContext FieldSummary         `json:"field_context"`
	Status       string               `json:"status"`
}

// StepResult is the outcome of Step. The snapshot fields are inlined.
type StepResult struct {
	resonance.Snapshot
	Translated string          `json:"translated_argument,omitempty"`
	State      resonance.State `json:"state"`
	Status     string          `json:"status"`
}

// BattleResult is the outcome of Battle.
type BattleResult struct {
	resonance.BattleResult
	FieldContext FieldSummary `json:"field_context"`
	Status       string       `json:"status"`
}

// toScenarios converts inline futures to engine scenarios. Names are kept
// as sent apart from trimming, control characters and the length cap. The
// returned error wraps ErrInvalidFutures.
func toScenarios(in []FutureInput) ([]resonance.Scenario, error) {
	out := make([]resonance.Scenario, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, f := range in {
		name := sanitize.Text(f.Name, sanitize.MaxNameLength)
		if name == "" {
			return nil, fmt.Errorf("%w: future %d has no name", ErrInvalidFutures, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate future %q", ErrInvalidFutures, name)
		}
		seen[name] = true

		p := 1.0
		if f.Probability != nil {
			p = *f.Probability
		}
		out = append(out, resonance.Scenario{
			Name:        name,
			Keywords:    sanitize.Keywords(f.Keywords),
			CoreLogic:   sanitize.Text(f.CoreLogic, sanitize.MaxDescriptionLength),
			Description: sanitize.Text(f.Description, sanitize.MaxDescriptionLength),
			Probability: p,
		})
	}
	return out, nil
}
