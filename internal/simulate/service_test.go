package simulate

import (
	"bufio"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/nvandessel/foresight/internal/config"
	"github.com/nvandessel/foresight/internal/field"
	"github.com/nvandessel/foresight/internal/logging"
	"github.com/nvandessel/foresight/internal/metrics"
	"github.com/nvandessel/foresight/internal/resonance"
	"github.com/nvandessel/foresight/internal/store"
	"github.com/nvandessel/foresight/internal/translate"
)

// fakeField is a FieldSource returning a fixed context or error.
type fakeField struct {
	mu    sync.Mutex
	ctx   *field.Context
	err   error
	calls []int
}

func (f *fakeField) Fetch(_ context.Context, maxFeeds int) (*field.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, maxFeeds)
	return f.ctx, f.err
}

func okField() *fakeField {
	return &fakeField{ctx: &field.Context{
		Headlines:   []string{"Solar power surges across Europe", "Ceasefire talks collapse"},
		HotTopics:   []string{"climate", "geopolitics"},
		CrisisLevel: 5,
		Status:      field.StatusOK,
	}}
}

func seed(v uint64) *uint64 { return &v }

func boolPtr(b bool) *bool { return &b }

func probSum(probs map[string]float64) float64 {
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	return sum
}

func TestSimulate_RequiresArgument(t *testing.T) {
	svc := New(Options{})
	for _, arg := range []string{"", "   ", "\x00\x01"} {
		if _, err := svc.Simulate(context.Background(), Request{Argument: arg}); !errors.Is(err, ErrEmptyArgument) {
			t.Errorf("Simulate(%q) error = %v, want ErrEmptyArgument", arg, err)
		}
	}
}

func TestSimulate_StepClamping(t *testing.T) {
	svc := New(Options{Engine: config.Default().Engine})

	tests := []struct {
		requested int
		want      int
	}{
		{0, 5},
		{3, 3},
		{50, 10},
		{-4, 1},
	}
	for _, tt := range tests {
		res, err := svc.Simulate(context.Background(), Request{Argument: "AI automation", Steps: tt.requested, Seed: seed(1)})
		if err != nil {
			t.Fatalf("Simulate() error = %v", err)
		}
		if res.Steps != tt.want || len(res.History) != tt.want {
			t.Errorf("steps %d -> %d (history %d), want %d", tt.requested, res.Steps, len(res.History), tt.want)
		}
	}
}

func TestSimulate_ResultShape(t *testing.T) {
	svc := New(Options{})
	res, err := svc.Simulate(context.Background(), Request{Argument: "quantum AI will transform data", Steps: 3, Seed: seed(42)})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if res.Status != "ok" {
		t.Errorf("Status = %q", res.Status)
	}
	if res.History[0].Argument != "quantum AI will transform data" {
		t.Errorf("first snapshot argument = %q", res.History[0].Argument)
	}
	for i, snap := range res.History[1:] {
		if snap.Argument != resonance.FeedbackOnly {
			t.Errorf("snapshot %d argument = %q, want feedback sentinel", i+2, snap.Argument)
		}
	}
	for _, snap := range res.History {
		if math.Abs(probSum(snap.ProbabilitiesAfter)-1) > 1e-3 {
			t.Errorf("iteration %d probabilities sum to %v", snap.Iteration, probSum(snap.ProbabilitiesAfter))
		}
	}
	if len(res.FinalState.Scenarios) != 5 || res.FinalState.Iteration != 3 {
		t.Errorf("unexpected final state: %+v", res.FinalState)
	}
	if res.FieldContext.Status != StatusNotFetched {
		t.Errorf("field status = %q, want not_fetched without a source", res.FieldContext.Status)
	}
}

func TestSimulate_SeedIsReproducible(t *testing.T) {
	svc := New(Options{})
	run := func() map[string]float64 {
		res, err := svc.Simulate(context.Background(), Request{Argument: "climate transition", Steps: 5, Seed: seed(7)})
		if err != nil {
			t.Fatal(err)
		}
		return res.History[len(res.History)-1].ProbabilitiesAfter
	}
	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Errorf("same seed gave different results:\n%v\n%v", a, b)
	}
}

func TestSimulate_InlineFutures(t *testing.T) {
	svc := New(Options{})
	ctx := context.Background()

	half := 0.5
	res, err := svc.Simulate(ctx, Request{
		Argument: "rockets and orbit",
		Steps:    2,
		Seed:     seed(3),
		Futures: []FutureInput{
			{Name: "Space Age", Keywords: []string{"Orbit", "rocket"}, CoreLogic: "expansion"},
			{Name: "Grounded", Keywords: []string{"soil"}, CoreLogic: "staying home", Probability: &half},
		},
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if len(res.FinalState.Scenarios) != 2 {
		t.Fatalf("expected 2 futures, got %d", len(res.FinalState.Scenarios))
	}
	if _, ok := res.History[0].ProbabilitiesAfter["Space Age"]; !ok {
		t.Errorf("expected name Space Age kept in %v", res.History[0].ProbabilitiesAfter)
	}

	_, err = svc.Simulate(ctx, Request{Argument: "x", Futures: []FutureInput{{Keywords: []string{"a"}}}})
	if !errors.Is(err, ErrInvalidFutures) {
		t.Errorf("unnamed future error = %v, want ErrInvalidFutures", err)
	}
	_, err = svc.Simulate(ctx, Request{Argument: "x", Futures: []FutureInput{{Name: "A"}, {Name: "A"}}})
	if !errors.Is(err, ErrInvalidFutures) {
		t.Errorf("duplicate future error = %v, want ErrInvalidFutures", err)
	}
}

func TestSimulate_InlineFutureNamesKept(t *testing.T) {
	svc := New(Options{})
	ctx := context.Background()

	res, err := svc.Simulate(ctx, Request{
		Argument: "plan",
		Steps:    1,
		Seed:     seed(1),
		UseField: boolPtr(false),
		Futures: []FutureInput{
			{Name: "  Scenario 1.0 ", Keywords: []string{"plan"}},
			{Name: "Plan B (fallback)", Keywords: []string{"fallback"}},
			{Name: "A.B"},
			{Name: "AB"},
			{Name: "line\x00break"},
		},
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	var got []string
	for _, sc := range res.FinalState.Scenarios {
		got = append(got, sc.Name)
	}
	want := []string{"Scenario 1.0", "Plan B (fallback)", "A.B", "AB", "linebreak"}
	for _, name := range want {
		if _, ok := res.History[0].ProbabilitiesAfter[name]; !ok {
			t.Errorf("missing future %q in %v", name, got)
		}
	}
	if len(got) != len(want) {
		t.Errorf("got %d futures, want %d: %v", len(got), len(want), got)
	}

	_, err = svc.Simulate(ctx, Request{Argument: "x", Futures: []FutureInput{{Name: "A"}, {Name: " A "}}})
	if !errors.Is(err, ErrInvalidFutures) {
		t.Errorf("duplicate after trimming error = %v, want ErrInvalidFutures", err)
	}
}

func TestSimulate_ArgumentKeptAsSent(t *testing.T) {
	svc := New(Options{})
	res, err := svc.Simulate(context.Background(), Request{
		Argument: "not  technology",
		Steps:    1,
		Seed:     seed(2),
		UseField: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if res.Argument != "not  technology" || res.History[0].Argument != "not  technology" {
		t.Errorf("argument rewritten: %q / %q", res.Argument, res.History[0].Argument)
	}
}

func TestSimulate_UsesActiveCatalog(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	if _, err := s.Create(ctx, store.ScenarioInput{Name: "Mars", Keywords: []string{"mars"}, CoreLogic: "colonies"}); err != nil {
		t.Fatal(err)
	}
	off, err := s.Create(ctx, store.ScenarioInput{Name: "Moon", Keywords: []string{"moon"}, CoreLogic: "bases"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, store.ScenarioInput{Name: "Venus", Keywords: []string{"venus"}, CoreLogic: "clouds"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetActive(ctx, off.ID, false); err != nil {
		t.Fatal(err)
	}

	svc := New(Options{Store: s})
	res, err := svc.Simulate(ctx, Request{Argument: "mars colonies", Steps: 1, Seed: seed(9)})
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, sc := range res.FinalState.Scenarios {
		names[sc.Name] = true
	}
	if !reflect.DeepEqual(names, map[string]bool{"Mars": true, "Venus": true}) {
		t.Errorf("expected active catalog scenarios, got %v", names)
	}
}

func TestSimulate_FieldContext(t *testing.T) {
	ctx := context.Background()

	t.Run("fetched", func(t *testing.T) {
		src := okField()
		svc := New(Options{Field: src, MaxFeeds: 3})
		res, err := svc.Simulate(ctx, Request{Argument: "solar energy", Steps: 1, Seed: seed(1)})
		if err != nil {
			t.Fatal(err)
		}
		if res.FieldContext.Status != field.StatusOK || res.FieldContext.HeadlinesCount != 2 {
			t.Errorf("unexpected field summary: %+v", res.FieldContext)
		}
		if !reflect.DeepEqual(src.calls, []int{3}) {
			t.Errorf("expected one fetch of 3 feeds, got %v", src.calls)
		}
		if len(res.History[0].Topics) == 0 {
			t.Error("expected topics recorded on snapshot")
		}
		var green resonance.ScenarioState
		for _, sc := range res.FinalState.Scenarios {
			if sc.Name == "Green-Symbiosis" {
				green = sc
			}
		}
		if len(green.MatchedHeadlines) == 0 {
			t.Error("expected Green-Symbiosis to match the solar headline")
		}
	})

	t.Run("disabled by request", func(t *testing.T) {
		src := okField()
		svc := New(Options{Field: src})
		res, err := svc.Simulate(ctx, Request{Argument: "solar", Steps: 1, UseField: boolPtr(false)})
		if err != nil {
			t.Fatal(err)
		}
		if len(src.calls) != 0 || res.FieldContext.Status != StatusNotFetched {
			t.Errorf("field should not be fetched: calls=%v status=%s", src.calls, res.FieldContext.Status)
		}
	})

	t.Run("fetch error degrades", func(t *testing.T) {
		svc := New(Options{Field: &fakeField{err: errors.New("offline")}})
		res, err := svc.Simulate(ctx, Request{Argument: "solar", Steps: 1})
		if err != nil {
			t.Fatalf("field failure must not fail the simulation: %v", err)
		}
		if res.FieldContext.Status != StatusNotFetched {
			t.Errorf("status = %q, want not_fetched", res.FieldContext.Status)
		}
	})
}

func TestSimulate_Translation(t *testing.T) {
	ctx := context.Background()

	t.Run("translated argument drives engine", func(t *testing.T) {
		tr := &translate.Mock{Mapping: map[string]string{"énergie solaire": "solar energy"}}
		svc := New(Options{Translator: tr})
		res, err := svc.Simulate(ctx, Request{Argument: "énergie solaire", Steps: 1, Seed: seed(2)})
		if err != nil {
			t.Fatal(err)
		}
		if res.Translated != "solar energy" {
			t.Errorf("Translated = %q", res.Translated)
		}
		if res.History[0].Argument != "énergie solaire" {
			t.Errorf("history should keep the original argument, got %q", res.History[0].Argument)
		}
	})

	t.Run("failure falls back to original", func(t *testing.T) {
		tr := &translate.Mock{Err: errors.New("quota")}
		svc := New(Options{Translator: tr})
		res, err := svc.Simulate(ctx, Request{Argument: "hola", Steps: 1})
		if err != nil {
			t.Fatal(err)
		}
		if res.Translated != "" {
			t.Errorf("expected no translation, got %q", res.Translated)
		}
	})
}

func TestStep(t *testing.T) {
	ctx := context.Background()
	svc := New(Options{Field: okField()})

	current := map[string]float64{
		"Fragmentation":         0.9,
		"Tech-Acceleration":     0.025,
		"Green-Symbiosis":       0.025,
		"Control-Consolidation": 0.025,
		"Resilient-Adaptation":  0.025,
	}
	res, err := svc.Step(ctx, StepRequest{CurrentProbs: current, Seed: seed(5), UseField: boolPtr(false)})
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if res.Iteration != 1 || res.Argument != resonance.FeedbackOnly {
		t.Errorf("unexpected snapshot: iteration=%d argument=%q", res.Iteration, res.Argument)
	}
	if res.ProbabilitiesBefore["Fragmentation"] < 0.8 {
		t.Errorf("expected restored probabilities, got %v", res.ProbabilitiesBefore)
	}
	if res.Realized == "" || res.Feedback == "" {
		t.Error("expected a realized scenario and feedback")
	}
	if res.State.Iteration != 1 {
		t.Errorf("state iteration = %d", res.State.Iteration)
	}

	withArg, err := svc.Step(ctx, StepRequest{Argument: "war and conflict"})
	if err != nil {
		t.Fatal(err)
	}
	if withArg.Argument != "war and conflict" {
		t.Errorf("argument = %q", withArg.Argument)
	}
	src := svc.field.(*fakeField)
	if !reflect.DeepEqual(src.calls, []int{stepFeeds}) {
		t.Errorf("step should fetch %d feeds once, got %v", stepFeeds, src.calls)
	}
}

func TestBattle(t *testing.T) {
	ctx := context.Background()
	svc := New(Options{})

	if _, err := svc.Battle(ctx, BattleRequest{ArgumentA: "ai"}); !errors.Is(err, ErrEmptyArgument) {
		t.Errorf("missing B error = %v, want ErrEmptyArgument", err)
	}

	res, err := svc.Battle(ctx, BattleRequest{
		ArgumentA: "AI automation and neural compute",
		ArgumentB: "climate renewable solar energy",
		Rounds:    30,
		Seed:      seed(11),
	})
	if err != nil {
		t.Fatalf("Battle() error = %v", err)
	}
	if len(res.Rounds) != 10 {
		t.Errorf("rounds = %d, want clamped to 10", len(res.Rounds))
	}
	switch res.Winner {
	case resonance.SideA, resonance.SideB, resonance.Draw:
	default:
		t.Errorf("unexpected winner %q", res.Winner)
	}
	if res.A.Argument != "AI automation and neural compute" {
		t.Errorf("side A argument = %q", res.A.Argument)
	}
	if !reflect.DeepEqual(res.A.Preferred, []string{"Tech-Acceleration"}) {
		t.Errorf("side A preferred = %v", res.A.Preferred)
	}
	if res.Status != "ok" {
		t.Errorf("status = %q", res.Status)
	}
}

func TestField(t *testing.T) {
	ctx := context.Background()

	fc, err := New(Options{}).Field(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fc.Status != field.StatusNoData {
		t.Errorf("status without source = %q", fc.Status)
	}

	fc, err = New(Options{Field: okField()}).Field(ctx)
	if err != nil || fc.Status != field.StatusOK {
		t.Errorf("Field() = %+v, %v", fc, err)
	}

	if _, err := New(Options{Field: &fakeField{err: context.Canceled}}).Field(ctx); err == nil {
		t.Error("expected fetch error to surface from Field")
	}
}

func TestState(t *testing.T) {
	svc := New(Options{Field: okField()})
	state, fc, err := svc.State(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if fc == nil || state.Iteration != 0 || len(state.Scenarios) != 5 {
		t.Errorf("unexpected state: %+v", state)
	}
	if state.Entropy < 2.32 || state.Entropy > 2.33 {
		t.Errorf("uniform entropy over 5 scenarios = %v, want ~2.3219", state.Entropy)
	}
}

func TestRecordWritesDecisionsAndMetrics(t *testing.T) {
	dir := t.TempDir()
	dl := logging.NewDecisionLogger(dir, "debug")
	defer dl.Close()
	m := metrics.New()

	svc := New(Options{Decisions: dl, Metrics: m})
	if _, err := svc.Simulate(context.Background(), Request{Argument: "protest and crisis", Steps: 4}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, logging.DecisionFile))
	if err != nil {
		t.Fatalf("decision log missing: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 4 {
		t.Errorf("decision log has %d lines, want 4", lines)
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "foresight_engine_steps_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 4 {
				t.Errorf("steps counter = %v, want 4", got)
			}
		}
	}
	if !found {
		t.Error("steps counter not exported")
	}
}

// counterByLabel gathers family from m and returns its counter values keyed
// by the value of label.
func counterByLabel(t *testing.T, m *metrics.Metrics, family, label string) map[string]float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label {
					out[lp.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}

func TestRecord_InlineFutureNamesNotLabelled(t *testing.T) {
	m := metrics.New()
	svc := New(Options{Metrics: m})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Simulate(ctx, Request{
			Argument: "anything",
			Steps:    2,
			Seed:     seed(uint64(i)),
			UseField: boolPtr(false),
			Futures: []FutureInput{
				{Name: "caller future " + string(rune('a'+i)), Keywords: []string{"anything"}},
				{Name: "Fragmentation", Keywords: []string{"walls"}},
			},
		})
		if err != nil {
			t.Fatalf("Simulate() error = %v", err)
		}
	}

	got := counterByLabel(t, m, "foresight_realized_total", "scenario")
	total := 0.0
	for name, v := range got {
		if name != metrics.CustomScenario && name != "Fragmentation" {
			t.Errorf("unexpected realized label %q", name)
		}
		total += v
	}
	if total != 10 {
		t.Errorf("realized total = %v, want 10", total)
	}
}

func TestTranslate_SkippedWhenUnavailable(t *testing.T) {
	m := metrics.New()
	svc := New(Options{Metrics: m, Translator: translate.Noop{}})
	if _, err := svc.Simulate(context.Background(), Request{Argument: "solar", Steps: 1, UseField: boolPtr(false)}); err != nil {
		t.Fatal(err)
	}

	got := counterByLabel(t, m, "foresight_translations_total", "result")
	if got["skipped"] != 1 {
		t.Errorf("translations = %v, want skipped=1", got)
	}
}
