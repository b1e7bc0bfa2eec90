// Package simulate orchestrates one request end to end: it resolves the
// scenario set, gathers field context, optionally translates the argument,
// runs a fresh resonance engine and records the outcome.
package simulate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nvandessel/foresight/internal/config"
	"github.com/nvandessel/foresight/internal/field"
	"github.com/nvandessel/foresight/internal/logging"
	"github.com/nvandessel/foresight/internal/metrics"
	"github.com/nvandessel/foresight/internal/resonance"
	"github.com/nvandessel/foresight/internal/sanitize"
	"github.com/nvandessel/foresight/internal/store"
	"github.com/nvandessel/foresight/internal/translate"
)

var (
	// ErrEmptyArgument is returned when a required argument is blank.
	ErrEmptyArgument = errors.New("argument is required")

	// ErrInvalidFutures is returned when inline futures cannot be used.
	ErrInvalidFutures = errors.New("invalid futures")
)

// Simulation kinds, used for metrics and decision log entries.
const (
	KindSimulate = "simulate"
	KindStep     = "step"
	KindBattle   = "battle"
)

// stepFeeds is how many feeds a single step consults.
const stepFeeds = 2

// FieldSource provides field context. *field.Fetcher satisfies it.
type FieldSource interface {
	Fetch(ctx context.Context, maxFeeds int) (*field.Context, error)
}

// Options wires a Service. Every field is optional.
type Options struct {
	Store      store.ScenarioStore
	Field      FieldSource
	MaxFeeds   int
	Translator translate.Translator
	Metrics    *metrics.Metrics
	Decisions  *logging.DecisionLogger
	Logger     *slog.Logger
	Engine     config.EngineConfig
}

// Service runs simulations. It holds no per-request state and is safe for
// concurrent use; each call builds its own engine.
type Service struct {
	store      store.ScenarioStore
	field      FieldSource
	maxFeeds   int
	translator translate.Translator
	metrics    *metrics.Metrics
	decisions  *logging.DecisionLogger
	logger     *slog.Logger
	engine     config.EngineConfig
	nowFunc    func() time.Time
}

// New creates a Service. Missing engine settings fall back to config.Default.
func New(opts Options) *Service {
	defaults := config.Default()

	eng := opts.Engine
	if eng.MaxSteps < 1 {
		eng.MaxSteps = defaults.Engine.MaxSteps
	}
	if eng.Steps < 1 {
		eng.Steps = defaults.Engine.Steps
	}
	if eng.Temperature == 0 {
		eng.Temperature = defaults.Engine.Temperature
	}

	maxFeeds := opts.MaxFeeds
	if maxFeeds <= 0 {
		maxFeeds = defaults.Field.MaxFeeds
	}

	translator := opts.Translator
	if translator == nil {
		translator = translate.Noop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		store:      opts.Store,
		field:      opts.Field,
		maxFeeds:   maxFeeds,
		translator: translator,
		metrics:    opts.Metrics,
		decisions:  opts.Decisions,
		logger:     logger,
		engine:     eng,
		nowFunc:    time.Now,
	}
}

// MaxSteps returns the upper bound applied to steps and rounds.
func (s *Service) MaxSteps() int {
	return s.engine.MaxSteps
}

// Simulate runs a multi-step simulation of req.Argument.
func (s *Service) Simulate(ctx context.Context, req Request) (*Result, error) {
	argument := sanitize.Argument(req.Argument)
	if argument == "" {
		return nil, ErrEmptyArgument
	}
	steps := s.clampSteps(req.Steps)

	scenarios, err := s.scenarios(ctx, req.Futures)
	if err != nil {
		return nil, err
	}

	fc, topics := s.fieldContext(ctx, req.UseField, s.maxFeeds)
	engineArg, translated := s.translate(ctx, argument)

	eng := resonance.New(resonance.Config{Scenarios: scenarios, Seed: req.Seed})
	history := eng.Run(engineArg, steps, topics, s.temperature(req.Temperature))
	if translated != "" {
		history[0].Argument = argument
	}
	state := eng.State(headlines(fc))

	s.record(KindSimulate, history, state, s.knownScenarios(ctx, scenarios, req.Futures))
	s.logger.Info("simulation complete",
		"steps", steps, "dominant", state.Dominant, "entropy", state.Entropy)

	return &Result{
		Argument:     argument,
		Translated:   translated,
		Steps:        steps,
		FinalState:   state,
		History:      history,
		FieldContext: summarize(fc),
		Status:       "ok",
	}, nil
}

// Step runs one iteration on an engine seeded with the active catalog and,
// when given, the caller's current probabilities.
func (s *Service) Step(ctx context.Context, req StepRequest) (*StepResult, error) {
	argument := sanitize.Argument(req.Argument)

	scenarios, err := s.scenarios(ctx, nil)
	if err != nil {
		return nil, err
	}

	_, topics := s.fieldContext(ctx, req.UseField, stepFeeds)
	engineArg, translated := s.translate(ctx, argument)

	eng := resonance.New(resonance.Config{Scenarios: scenarios, Seed: req.Seed})
	eng.Restore(req.CurrentProbs)
	snaps := eng.Run(engineArg, 1, topics, s.temperature(req.Temperature))
	snap := snaps[0]
	if argument != "" {
		snap.Argument = argument
	}
	state := eng.State(nil)

	s.record(KindStep, snaps, state, s.knownScenarios(ctx, scenarios, nil))

	return &StepResult{
		Snapshot:   snap,
		Translated: translated,
		State:      state,
		Status:     "ok",
	}, nil
}

// Battle runs two arguments against each other for req.Rounds rounds.
func (s *Service) Battle(ctx context.Context, req BattleRequest) (*BattleResult, error) {
	argA := sanitize.Argument(req.ArgumentA)
	argB := sanitize.Argument(req.ArgumentB)
	if argA == "" || argB == "" {
		return nil, ErrEmptyArgument
	}
	rounds := s.clampSteps(req.Rounds)

	scenarios, err := s.scenarios(ctx, req.Futures)
	if err != nil {
		return nil, err
	}

	fc, topics := s.fieldContext(ctx, req.UseField, s.maxFeeds)
	engA, _ := s.translate(ctx, argA)
	engB, _ := s.translate(ctx, argB)

	eng := resonance.New(resonance.Config{Scenarios: scenarios, Seed: req.Seed})
	res := eng.Battle(engA, engB, rounds, topics, s.temperature(req.Temperature))
	res.A.Argument = argA
	res.B.Argument = argB

	s.record(KindBattle, eng.History(), res.Final, s.knownScenarios(ctx, scenarios, req.Futures))
	s.logger.Info("battle complete", "rounds", rounds, "winner", res.Winner)

	return &BattleResult{
		BattleResult: res,
		FieldContext: summarize(fc),
		Status:       "ok",
	}, nil
}

// State returns the ranked view of a fresh engine over the active catalog,
// annotated with headlines when withField is set.
func (s *Service) State(ctx context.Context, withField bool) (resonance.State, *field.Context, error) {
	scenarios, err := s.scenarios(ctx, nil)
	if err != nil {
		return resonance.State{}, nil, err
	}
	var fc *field.Context
	if withField {
		fc, _ = s.fieldContext(ctx, nil, s.maxFeeds)
	}
	eng := resonance.New(resonance.Config{Scenarios: scenarios})
	return eng.State(headlines(fc)), fc, nil
}

// Field fetches the current field context. Without a configured source it
// reports no_data.
func (s *Service) Field(ctx context.Context) (*field.Context, error) {
	if s.field == nil {
		s.metrics.ObserveFieldFetch(field.StatusNoData)
		return &field.Context{
			Headlines: []string{},
			HotTopics: []string{},
			Timestamp: s.nowFunc().UTC(),
			Status:    field.StatusNoData,
		}, nil
	}
	fc, err := s.field.Fetch(ctx, s.maxFeeds)
	if err != nil {
		s.metrics.ObserveFieldFetch("error")
		return nil, err
	}
	s.metrics.ObserveFieldFetch(fc.Status)
	return fc, nil
}

func (s *Service) clampSteps(n int) int {
	switch {
	case n == 0:
		n = s.engine.Steps
	case n < 1:
		n = 1
	}
	return min(n, s.engine.MaxSteps)
}

func (s *Service) temperature(t float64) resonance.RunOption {
	if t == 0 {
		t = s.engine.Temperature
	}
	return resonance.WithTemperature(t)
}

// scenarios resolves inline futures or, without them, the active catalog.
// Catalog read errors degrade to the built-in defaults.
func (s *Service) scenarios(ctx context.Context, inline []FutureInput) ([]resonance.Scenario, error) {
	if len(inline) > 0 {
		return toScenarios(inline)
	}
	scenarios, err := store.ActiveScenarios(ctx, s.store)
	if err != nil {
		s.logger.Warn("using default scenarios", "error", err)
	}
	return scenarios, nil
}

// fieldContext fetches field context when requested. Failures are logged
// and treated as no context.
func (s *Service) fieldContext(ctx context.Context, useField *bool, maxFeeds int) (*field.Context, []string) {
	if s.field == nil || (useField != nil && !*useField) {
		return nil, nil
	}
	fc, err := s.field.Fetch(ctx, maxFeeds)
	if err != nil {
		s.logger.Warn("field context unavailable", "error", err)
		s.metrics.ObserveFieldFetch("error")
		return nil, nil
	}
	s.metrics.ObserveFieldFetch(fc.Status)
	return fc, field.TopicsForEngine(fc)
}

// translate returns the text the engine should see and, when it differs
// from the input, the translation to report.
func (s *Service) translate(ctx context.Context, argument string) (string, string) {
	if argument == "" {
		return argument, ""
	}
	if !s.translator.Available() {
		s.metrics.ObserveTranslation("skipped")
		return argument, ""
	}
	out, err := s.translator.Translate(ctx, argument)
	if err != nil {
		s.logger.Warn("translation failed, using original argument", "error", err)
		s.metrics.ObserveTranslation("error")
		return argument, ""
	}
	s.metrics.ObserveTranslation("ok")
	if strings.EqualFold(strings.TrimSpace(out), argument) {
		return argument, ""
	}
	return out, out
}

// knownScenarios returns the names safe to use as metric labels: the
// built-in defaults plus the active catalog. A run over the catalog already
// holds those names, so the store is only consulted for inline futures.
func (s *Service) knownScenarios(ctx context.Context, scenarios []resonance.Scenario, inline []FutureInput) map[string]bool {
	known := make(map[string]bool)
	for _, sc := range resonance.DefaultScenarios() {
		known[sc.Name] = true
	}
	if len(inline) > 0 {
		scenarios, _ = store.ActiveScenarios(ctx, s.store)
	}
	for _, sc := range scenarios {
		known[sc.Name] = true
	}
	return known
}

// record writes snapshots to the decision log and updates metrics.
func (s *Service) record(kind string, history []resonance.Snapshot, final resonance.State, known map[string]bool) {
	realized := make([]string, 0, len(history))
	for _, snap := range history {
		realized = append(realized, snap.Realized)
		s.decisions.Log(map[string]any{
			"event":        "snapshot",
			"kind":         kind,
			"iteration":    snap.Iteration,
			"argument":     snap.Argument,
			"realized":     snap.Realized,
			"feedback":     snap.Feedback,
			"probs_before": snap.ProbabilitiesBefore,
			"probs_after":  snap.ProbabilitiesAfter,
		})
	}
	s.metrics.ObserveSimulation(kind, len(history), realized, known, final.Entropy)
}

func headlines(fc *field.Context) []string {
	if fc == nil {
		return nil
	}
	return fc.Headlines
}
