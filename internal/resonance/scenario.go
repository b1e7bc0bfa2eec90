// Package resonance implements the narrative resonance engine. An engine
// holds a probability vector over named future scenarios, shifts it from
// keyword and topic matches in argument text, collapses it stochastically
// into a realized scenario and feeds that outcome back into itself.
package resonance

import "time"

// FeedbackOnly is recorded as the argument of a snapshot when no external
// argument drove the step.
const FeedbackOnly = "(internal feedback only)"

// Scenario is a possible future the engine distributes probability over.
type Scenario struct {
	Name        string   `json:"name" yaml:"name"`
	Keywords    []string `json:"keywords" yaml:"keywords"`     // matched as lowercase substrings; order matters for feedback
	CoreLogic   string   `json:"core_logic" yaml:"core_logic"` // governing assumption, also used for contradiction detection
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Probability float64  `json:"probability" yaml:"probability"`
}

// clone returns a deep copy of the scenario.
func (s Scenario) clone() Scenario {
	c := s
	if s.Keywords != nil {
		c.Keywords = make([]string, len(s.Keywords))
		copy(c.Keywords, s.Keywords)
	}
	return c
}

// Snapshot is the immutable record of one engine iteration.
type Snapshot struct {
	Iteration           int                `json:"iteration"`
	Timestamp           time.Time          `json:"timestamp"`
	Argument            string             `json:"argument"`
	ProbabilitiesBefore map[string]float64 `json:"probs_before"`
	Realized            string             `json:"realized"`
	Feedback            string             `json:"feedback"`
	ProbabilitiesAfter  map[string]float64 `json:"probs_after"`
	Topics              []string           `json:"field_context,omitempty"`
}

// DefaultScenarios returns a fresh copy of the five built-in scenarios.
// Each has probability 1.0 until normalized by an engine.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name: "Tech-Acceleration",
			Keywords: []string{"ai", "quantum", "singularity", "agi", "automation",
				"intelligence", "neural", "model", "compute", "data"},
			CoreLogic:   "technology accelerates beyond human control",
			Description: "Rapid technological acceleration, AI dominance, post-human transition",
			Probability: 1.0,
		},
		{
			Name: "Green-Symbiosis",
			Keywords: []string{"climate", "renewable", "sustainable", "ecology", "green",
				"solar", "energy", "nature", "carbon", "transition"},
			CoreLogic:   "humanity cooperates with natural systems",
			Description: "Ecological transition, distributed energy, human-nature balance",
			Probability: 1.0,
		},
		{
			Name: "Control-Consolidation",
			Keywords: []string{"surveillance", "control", "authoritarian", "restrict",
				"censor", "monitor", "power", "government", "limit", "ban"},
			CoreLogic:   "centralized control tightens over information and people",
			Description: "Surveillance expansion, information control, authoritarian consolidation",
			Probability: 1.0,
		},
		{
			Name: "Fragmentation",
			Keywords: []string{"war", "conflict", "crisis", "collapse", "protest",
				"revolution", "divide", "polariz", "chaos", "instability"},
			CoreLogic:   "global systems fragment into competing blocs",
			Description: "Geopolitical fragmentation, resource conflicts, institutional collapse",
			Probability: 1.0,
		},
		{
			Name: "Resilient-Adaptation",
			Keywords: []string{"community", "local", "resilient", "adapt", "cooperat",
				"decentraliz", "mutual", "network", "grassroot", "bottom-up"},
			CoreLogic:   "communities adapt through decentralized cooperation",
			Description: "Bottom-up resilience, community networks, adaptive institutions",
			Probability: 1.0,
		},
	}
}
