package resonance

import (
	"sort"
	"strings"
)

// MaxMatchedHeadlines is the number of headlines attached to each scenario
// in a State.
const MaxMatchedHeadlines = 3

// ScenarioState is one ranked entry of a State.
type ScenarioState struct {
	Name             string   `json:"name"`
	Probability      float64  `json:"probability"`
	Percent          float64  `json:"probability_pct"`
	Description      string   `json:"description"`
	CoreLogic        string   `json:"core_logic"`
	MatchedHeadlines []string `json:"matched_headlines"`
}

// State is a ranked, annotated view of the engine's distribution.
type State struct {
	Iteration int             `json:"iteration"`
	Scenarios []ScenarioState `json:"futures"`
	Dominant  string          `json:"dominant"`
	Entropy   float64         `json:"entropy"`
}

// State returns the scenarios sorted by descending probability. When
// headlines are given, each scenario carries up to MaxMatchedHeadlines of
// them ranked by keyword hits.
func (e *Engine) State(headlines []string) State {
	ranked := e.Scenarios()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})

	st := State{
		Iteration: e.iteration,
		Scenarios: make([]ScenarioState, 0, len(ranked)),
		Entropy:   round(e.Entropy(), 4),
	}
	for _, s := range ranked {
		st.Scenarios = append(st.Scenarios, ScenarioState{
			Name:             s.Name,
			Probability:      round(s.Probability, 4),
			Percent:          round(s.Probability*100, 1),
			Description:      s.Description,
			CoreLogic:        s.CoreLogic,
			MatchedHeadlines: MatchHeadlines(s, headlines),
		})
	}
	if len(st.Scenarios) > 0 {
		st.Dominant = st.Scenarios[0].Name
	}
	return st
}

// MatchHeadlines returns up to MaxMatchedHeadlines headlines containing at
// least one of the scenario's keywords, ordered by hit count descending and
// input order on ties. It never returns nil.
func MatchHeadlines(scenario Scenario, headlines []string) []string {
	type match struct {
		hits     int
		headline string
	}

	var matched []match
	for _, h := range headlines {
		lower := strings.ToLower(h)
		hits := 0
		for _, kw := range scenario.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > 0 {
			matched = append(matched, match{hits: hits, headline: h})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].hits > matched[j].hits
	})

	out := make([]string, 0, MaxMatchedHeadlines)
	for i := 0; i < len(matched) && i < MaxMatchedHeadlines; i++ {
		out = append(out, matched[i].headline)
	}
	return out
}
