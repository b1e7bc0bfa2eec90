package resonance

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	// ArgumentNoise is the noise fraction applied to external arguments.
	ArgumentNoise = 0.05

	// FeedbackNoise is the noise fraction applied to self-generated feedback.
	FeedbackNoise = 0.08

	// ContradictionMultiplier suppresses a scenario whose core logic is negated.
	ContradictionMultiplier = 0.2

	// MaxResonance caps the multiplier of a single application.
	MaxResonance = 3.5

	keywordWeight = 0.25
	fieldWeight   = 0.15

	// MinTemperature and MaxTemperature bound the noise scale of a run.
	MinTemperature = 0.1
	MaxTemperature = 2.0
)

// Config configures a new Engine.
type Config struct {
	// Scenarios are deep-copied into the engine. When empty, DefaultScenarios
	// is used unless AllowEmpty is set.
	Scenarios []Scenario

	// AllowEmpty keeps an empty scenario list instead of falling back to the
	// defaults. The resulting engine has no resonance effect.
	AllowEmpty bool

	// Seed makes the engine's random source reproducible. Nil seeds from
	// process entropy.
	Seed *uint64

	// Temperature scales all noise terms. Zero means 1.0. Clamped to
	// [MinTemperature, MaxTemperature].
	Temperature float64
}

// Engine is a request-scoped narrative resonance simulator.
// It is not safe for concurrent use.
type Engine struct {
	scenarios   []Scenario
	history     []Snapshot
	iteration   int
	rng         *rand.Rand
	temperature float64
	nowFunc     func() time.Time
}

// New creates an engine from cfg and normalizes its probabilities.
func New(cfg Config) *Engine {
	src := cfg.Scenarios
	if len(src) == 0 && !cfg.AllowEmpty {
		src = DefaultScenarios()
	}

	scenarios := make([]Scenario, len(src))
	for i, s := range src {
		scenarios[i] = s.clone()
		if scenarios[i].Probability < 0 || math.IsNaN(scenarios[i].Probability) {
			scenarios[i].Probability = 0
		}
	}

	var rng *rand.Rand
	if cfg.Seed != nil {
		rng = rand.New(rand.NewPCG(*cfg.Seed, *cfg.Seed^0x9e3779b97f4a7c15))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	e := &Engine{
		scenarios:   scenarios,
		rng:         rng,
		temperature: 1.0,
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}
	if cfg.Temperature != 0 {
		e.temperature = ClampTemperature(cfg.Temperature)
	}
	e.normalize()
	return e
}

// ClampTemperature bounds t to [MinTemperature, MaxTemperature].
func ClampTemperature(t float64) float64 {
	return math.Max(MinTemperature, math.Min(MaxTemperature, t))
}

// normalize rescales probabilities to sum to 1.0. A non-positive total
// resets every scenario to 1/N.
func (e *Engine) normalize() {
	n := len(e.scenarios)
	if n == 0 {
		return
	}

	total := 0.0
	for _, s := range e.scenarios {
		total += s.Probability
	}

	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		for i := range e.scenarios {
			e.scenarios[i].Probability = 1.0 / float64(n)
		}
		return
	}

	for i := range e.scenarios {
		e.scenarios[i].Probability /= total
	}
}

// Resonance returns the multiplier by which argument amplifies (>1) or
// suppresses (<1) scenario, given the current topics. It is deterministic.
func Resonance(scenario Scenario, argument string, topics []string) float64 {
	arg := strings.ToLower(argument)

	// Negating any word of the core logic suppresses the scenario outright.
	for _, w := range strings.Fields(strings.ToLower(scenario.CoreLogic)) {
		if strings.Contains(arg, "not "+w) ||
			strings.Contains(arg, "no "+w) ||
			strings.Contains(arg, "against "+w) {
			return ContradictionMultiplier
		}
	}

	keywordHits := 0
	for _, kw := range scenario.Keywords {
		if strings.Contains(arg, strings.ToLower(kw)) {
			keywordHits++
		}
	}
	base := 1.0 + float64(keywordHits)*keywordWeight

	fieldHits := 0
	for _, kw := range scenario.Keywords {
		kw = strings.ToLower(kw)
		for _, topic := range topics {
			topic = strings.ToLower(topic)
			if strings.Contains(topic, kw) || strings.Contains(kw, topic) {
				fieldHits++
			}
		}
	}
	boost := 1.0 + float64(fieldHits)*fieldWeight

	return math.Min(base*boost, MaxResonance)
}

// ApplyArgument multiplies each scenario's probability by its resonance with
// argument and a fresh noise factor in [1-noise, 1+noise], scaled by the
// engine temperature, then normalizes.
func (e *Engine) ApplyArgument(argument string, topics []string, noise float64) {
	n := noise * e.temperature
	for i := range e.scenarios {
		r := Resonance(e.scenarios[i], argument, topics)
		jitter := 1.0 + (e.rng.Float64()*2-1)*n
		e.scenarios[i].Probability *= r * jitter
	}
	e.normalize()
}

// Collapse draws one scenario weighted by current probability. All-zero
// weights fall back to a uniform draw. It returns false only when the
// engine has no scenarios.
func (e *Engine) Collapse() (Scenario, bool) {
	if len(e.scenarios) == 0 {
		return Scenario{}, false
	}

	total := 0.0
	for _, s := range e.scenarios {
		total += s.Probability
	}
	if total <= 0 {
		return e.scenarios[e.rng.IntN(len(e.scenarios))].clone(), true
	}

	draw := e.rng.Float64() * total
	cumulative := 0.0
	for _, s := range e.scenarios {
		cumulative += s.Probability
		if draw < cumulative {
			return s.clone(), true
		}
	}

	// Floating-point shortfall: return the last scenario with weight.
	for i := len(e.scenarios) - 1; i >= 0; i-- {
		if e.scenarios[i].Probability > 0 {
			return e.scenarios[i].clone(), true
		}
	}
	return e.scenarios[len(e.scenarios)-1].clone(), true
}

// GenerateFeedback synthesizes the argument a realized scenario speaks back
// into the field.
func (e *Engine) GenerateFeedback(realized Scenario) string {
	kw := strings.ToLower(realized.Name)
	if len(realized.Keywords) > 0 {
		kw = realized.Keywords[e.rng.IntN(len(realized.Keywords))]
	}

	templates := [...]string{
		fmt.Sprintf("The trend toward %s is accelerating — focus on %s", realized.CoreLogic, kw),
		fmt.Sprintf("Evidence of %s confirms the %s trajectory", kw, realized.Name),
		fmt.Sprintf("Prioritize %s and related strategies for %s", kw, realized.Name),
		fmt.Sprintf("The %s scenario is gaining momentum through %s", realized.Name, kw),
	}
	return templates[e.rng.IntN(len(templates))]
}

// Step runs one iteration: apply the external argument (if any), collapse,
// generate feedback and apply it. The returned snapshot is also appended to
// the engine history.
func (e *Engine) Step(argument string, topics []string) Snapshot {
	e.iteration++
	topics = copyStrings(topics)

	if argument != "" {
		e.ApplyArgument(argument, topics, ArgumentNoise)
	}

	before := e.Probabilities()

	var realizedName, feedback string
	if realized, ok := e.Collapse(); ok {
		realizedName = realized.Name
		feedback = e.GenerateFeedback(realized)
		e.ApplyArgument(feedback, topics, FeedbackNoise)
	}

	recorded := argument
	if recorded == "" {
		recorded = FeedbackOnly
	}

	snap := Snapshot{
		Iteration:           e.iteration,
		Timestamp:           e.nowFunc(),
		Argument:            recorded,
		ProbabilitiesBefore: before,
		Realized:            realizedName,
		Feedback:            feedback,
		ProbabilitiesAfter:  e.Probabilities(),
		Topics:              topics,
	}
	e.history = append(e.history, snap)
	return snap
}

// RunOption customizes a single Run or Battle call.
type RunOption func(*runOptions)

type runOptions struct {
	temperature *float64
}

// WithTemperature scales noise for the duration of the call. Values are
// clamped to [MinTemperature, MaxTemperature]; 1.0 leaves noise untouched.
func WithTemperature(t float64) RunOption {
	return func(o *runOptions) {
		c := ClampTemperature(t)
		o.temperature = &c
	}
}

// withOptions applies opts to the engine and returns a func restoring the
// previous settings.
func (e *Engine) withOptions(opts []RunOption) func() {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	prev := e.temperature
	if o.temperature != nil {
		e.temperature = *o.temperature
	}
	return func() { e.temperature = prev }
}

// Run performs steps iterations. Only the first receives argument; later
// iterations evolve purely from the engine's own feedback.
func (e *Engine) Run(argument string, steps int, topics []string, opts ...RunOption) []Snapshot {
	restore := e.withOptions(opts)
	defer restore()

	results := make([]Snapshot, 0, max(steps, 0))
	for i := 0; i < steps; i++ {
		arg := ""
		if i == 0 {
			arg = argument
		}
		results = append(results, e.Step(arg, topics))
	}
	return results
}

// Reset restores uniform probabilities and clears history. Scenario
// definitions are kept.
func (e *Engine) Reset() {
	for i := range e.scenarios {
		e.scenarios[i].Probability = 1.0
	}
	e.normalize()
	e.history = nil
	e.iteration = 0
}

// Restore overwrites the probabilities of the named scenarios and
// normalizes. Unknown names are ignored; negative values count as zero.
func (e *Engine) Restore(probs map[string]float64) {
	if len(probs) == 0 {
		return
	}
	for i := range e.scenarios {
		p, ok := probs[e.scenarios[i].Name]
		if !ok {
			continue
		}
		if p < 0 || math.IsNaN(p) {
			p = 0
		}
		e.scenarios[i].Probability = p
	}
	e.normalize()
}

// Probabilities returns the current distribution keyed by scenario name,
// rounded to 4 decimal places.
func (e *Engine) Probabilities() map[string]float64 {
	probs := make(map[string]float64, len(e.scenarios))
	for _, s := range e.scenarios {
		probs[s.Name] = round(s.Probability, 4)
	}
	return probs
}

// Scenarios returns copies of the engine's scenarios in definition order.
func (e *Engine) Scenarios() []Scenario {
	out := make([]Scenario, len(e.scenarios))
	for i, s := range e.scenarios {
		out[i] = s.clone()
	}
	return out
}

// History returns the snapshots recorded so far, oldest first.
func (e *Engine) History() []Snapshot {
	out := make([]Snapshot, len(e.history))
	copy(out, e.history)
	return out
}

// Iteration returns the number of iterations performed since construction
// or the last Reset.
func (e *Engine) Iteration() int {
	return e.iteration
}

// Temperature returns the engine's current noise scale.
func (e *Engine) Temperature() float64 {
	return e.temperature
}

// Entropy returns the Shannon entropy (bits) of the current distribution.
func (e *Engine) Entropy() float64 {
	h := 0.0
	for _, s := range e.scenarios {
		if s.Probability > 0 {
			h -= s.Probability * math.Log2(s.Probability)
		}
	}
	return h
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
