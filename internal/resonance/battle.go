package resonance

import "math"

// Battle sides.
const (
	SideA = "A"
	SideB = "B"
	Draw  = "draw"
)

// BattleRound records one round of a battle.
type BattleRound struct {
	Round               int                `json:"round"`
	Iteration           int                `json:"iteration"`
	ProbabilitiesBefore map[string]float64 `json:"probs_before"`
	ProbabilitiesAfterA map[string]float64 `json:"probs_after_a"`
	ProbabilitiesAfterB map[string]float64 `json:"probs_after_b"`
	Realized            string             `json:"realized"`
	Feedback            string             `json:"feedback"`
	ProbabilitiesAfter  map[string]float64 `json:"probs_after"`
}

// BattleSide summarizes one competing argument.
type BattleSide struct {
	Argument string `json:"argument"`

	// Preferred lists the scenarios this argument resonates with most
	// strongly (maximal multiplier above 1.0).
	Preferred []string `json:"preferred"`

	// NetShift accumulates, per scenario, the probability change caused
	// directly by applying this argument across all rounds.
	NetShift map[string]float64 `json:"net_shift"`

	// Share is the final probability mass held by Preferred.
	Share float64 `json:"share"`
}

// BattleResult is the outcome of Battle.
type BattleResult struct {
	Rounds []BattleRound `json:"rounds"`
	A      BattleSide    `json:"a"`
	B      BattleSide    `json:"b"`
	Final  State         `json:"final_state"`
	Winner string        `json:"winner"`
}

// Battle lets two arguments compete for the same probability field. Each
// round applies A, then B, then collapses and feeds the realized scenario
// back as in Step. Each round is also appended to the history as a
// snapshot with argument "A vs B".
func (e *Engine) Battle(argA, argB string, rounds int, topics []string, opts ...RunOption) BattleResult {
	restore := e.withOptions(opts)
	defer restore()

	topics = copyStrings(topics)
	res := BattleResult{
		Rounds: make([]BattleRound, 0, max(rounds, 0)),
		A:      BattleSide{Argument: argA, Preferred: e.preferred(argA, topics), NetShift: map[string]float64{}},
		B:      BattleSide{Argument: argB, Preferred: e.preferred(argB, topics), NetShift: map[string]float64{}},
	}

	for r := 1; r <= rounds; r++ {
		e.iteration++

		before := e.rawProbabilities()
		e.ApplyArgument(argA, topics, ArgumentNoise)
		afterA := e.rawProbabilities()
		e.ApplyArgument(argB, topics, ArgumentNoise)
		afterB := e.rawProbabilities()

		for name, p := range afterA {
			res.A.NetShift[name] += p - before[name]
			res.B.NetShift[name] += afterB[name] - p
		}

		var realizedName, feedback string
		if realized, ok := e.Collapse(); ok {
			realizedName = realized.Name
			feedback = e.GenerateFeedback(realized)
			e.ApplyArgument(feedback, topics, FeedbackNoise)
		}

		rec := BattleRound{
			Round:               r,
			Iteration:           e.iteration,
			ProbabilitiesBefore: roundAll(before),
			ProbabilitiesAfterA: roundAll(afterA),
			ProbabilitiesAfterB: roundAll(afterB),
			Realized:            realizedName,
			Feedback:            feedback,
			ProbabilitiesAfter:  e.Probabilities(),
		}
		res.Rounds = append(res.Rounds, rec)

		e.history = append(e.history, Snapshot{
			Iteration:           e.iteration,
			Timestamp:           e.nowFunc(),
			Argument:            argA + " vs " + argB,
			ProbabilitiesBefore: rec.ProbabilitiesAfterB,
			Realized:            realizedName,
			Feedback:            feedback,
			ProbabilitiesAfter:  rec.ProbabilitiesAfter,
			Topics:              topics,
		})
	}

	for name, v := range res.A.NetShift {
		res.A.NetShift[name] = round(v, 4)
	}
	for name, v := range res.B.NetShift {
		res.B.NetShift[name] = round(v, 4)
	}

	final := e.rawProbabilities()
	res.A.Share = round(share(final, res.A.Preferred), 4)
	res.B.Share = round(share(final, res.B.Preferred), 4)
	res.Final = e.State(nil)

	switch {
	case res.A.Share > res.B.Share:
		res.Winner = SideA
	case res.B.Share > res.A.Share:
		res.Winner = SideB
	default:
		res.Winner = Draw
	}
	return res
}

// preferred returns the scenarios argument resonates with most strongly.
// Nothing is preferred when no scenario is amplified.
func (e *Engine) preferred(argument string, topics []string) []string {
	best := 1.0
	var names []string
	for _, s := range e.scenarios {
		r := Resonance(s, argument, topics)
		switch {
		case r > best+1e-12:
			best = r
			names = []string{s.Name}
		case r > 1.0 && math.Abs(r-best) <= 1e-12:
			names = append(names, s.Name)
		}
	}
	if names == nil {
		names = []string{}
	}
	return names
}

func (e *Engine) rawProbabilities() map[string]float64 {
	probs := make(map[string]float64, len(e.scenarios))
	for _, s := range e.scenarios {
		probs[s.Name] = s.Probability
	}
	return probs
}

func roundAll(probs map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(probs))
	for k, v := range probs {
		out[k] = round(v, 4)
	}
	return out
}

func share(probs map[string]float64, names []string) float64 {
	total := 0.0
	for _, n := range names {
		total += probs[n]
	}
	return total
}
