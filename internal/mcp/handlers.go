package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/foresight/internal/resonance"
	"github.com/nvandessel/foresight/internal/simulate"
	"github.com/nvandessel/foresight/internal/store"
)

const (
	activeScenariosURI = "foresight://scenarios/active"
	scenarioURIPrefix  = "foresight://scenarios/"
)

// errNoCatalog is returned by catalog operations when no store is wired.
var errNoCatalog = errors.New("scenario catalog not configured")

// registerTools registers all foresight MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "foresight_simulate",
		Description: "Run a multi-step resonance simulation of an argument against the scenario field and return the final distribution and per-step history",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "foresight_step",
		Description: "Advance the field by a single iteration, optionally resuming from previously returned probabilities",
	}, s.handleStep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "foresight_battle",
		Description: "Let two arguments compete for the same probability field over several rounds and report which one prevailed",
	}, s.handleBattle)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "foresight_field",
		Description: "Fetch current world-news headlines and report hot topic clusters and the crisis level",
	}, s.handleField)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "foresight_scenarios",
		Description: "List, add, enable, disable or delete scenarios in the catalog used by simulations",
	}, s.handleScenarios)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         activeScenariosURI,
		Name:        "foresight-active-scenarios",
		Description: "The scenarios currently competing in simulations, with their keywords and core logic.",
		MIMEType:    "text/markdown",
	}, s.handleActiveScenariosResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: scenarioURIPrefix + "{id}",
		Name:        "foresight-scenario",
		Description: "Full details for one catalog scenario.",
		MIMEType:    "text/markdown",
	}, s.handleScenarioResource)
}

// handleActiveScenariosResource renders the active scenario set as markdown.
func (s *Server) handleActiveScenariosResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	scenarios, err := store.ActiveScenarios(ctx, s.store)
	if err != nil {
		s.logger.Warn("catalog unavailable, showing defaults", "error", err)
	}

	var sb strings.Builder
	sb.WriteString("# Active Scenarios\n\n")
	sb.WriteString("Arguments shift probability toward scenarios whose keywords they mention ")
	sb.WriteString("and away from scenarios whose core logic they contradict.\n\n")
	for _, sc := range scenarios {
		fmt.Fprintf(&sb, "## %s\n\n", sc.Name)
		if sc.Description != "" {
			fmt.Fprintf(&sb, "%s\n\n", sc.Description)
		}
		fmt.Fprintf(&sb, "- **Core logic:** %s\n", sc.CoreLogic)
		fmt.Fprintf(&sb, "- **Keywords:** %s\n\n", strings.Join(sc.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "---\n*%d scenarios active*\n", len(scenarios))

	return markdownResult(activeScenariosURI, sb.String()), nil
}

// handleScenarioResource returns full details for a single catalog entry.
// URI format: foresight://scenarios/{id}
func (s *Server) handleScenarioResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, scenarioURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, scenarioURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("scenario ID is required")
	}
	if s.store == nil {
		return nil, errNoCatalog
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Scenario: %s\n\n", rec.Name)
	fmt.Fprintf(&sb, "**ID:** %s\n", rec.ID)
	fmt.Fprintf(&sb, "**Default:** %t\n", rec.IsDefault)
	fmt.Fprintf(&sb, "**Active:** %t\n\n", rec.IsActive)
	sb.WriteString("## Core Logic\n\n")
	sb.WriteString(rec.CoreLogic)
	sb.WriteString("\n")
	if rec.Description != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(rec.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\n## Keywords\n\n")
	for _, kw := range rec.Keywords {
		fmt.Fprintf(&sb, "- %s\n", kw)
	}

	return markdownResult(uri, sb.String()), nil
}

func markdownResult(uri, text string) *sdk.ReadResourceResult {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: uri, MIMEType: "text/markdown", Text: text},
		},
	}
}

// handleSimulate implements the foresight_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("foresight_simulate", start, retErr, sanitizeToolParams(map[string]any{
			"argument": args.Argument, "steps": args.Steps, "use_field": deref(args.UseField),
			"seed": deref(args.Seed), "temperature": args.Temperature, "futures": len(args.Futures),
		}))
	}()

	if err := s.checkLimit("foresight_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	res, err := s.svc.Simulate(ctx, simulate.Request{
		Argument:    args.Argument,
		Steps:       args.Steps,
		UseField:    args.UseField,
		Seed:        args.Seed,
		Futures:     args.Futures,
		Temperature: args.Temperature,
	})
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	history := make([]SnapshotItem, 0, len(res.History))
	for _, snap := range res.History {
		history = append(history, SnapshotItem{
			Iteration:          snap.Iteration,
			Argument:           snap.Argument,
			Realized:           snap.Realized,
			Feedback:           snap.Feedback,
			ProbabilitiesAfter: snap.ProbabilitiesAfter,
		})
	}

	return nil, SimulateOutput{
		Argument:   res.Argument,
		Translated: res.Translated,
		Steps:      res.Steps,
		Dominant:   res.FinalState.Dominant,
		Entropy:    res.FinalState.Entropy,
		Futures:    res.FinalState.Scenarios,
		History:    history,
		Field:      res.FieldContext,
		Summary:    fmt.Sprintf("After %d steps %s", res.Steps, describeState(res.FinalState)),
	}, nil
}

// handleStep implements the foresight_step tool.
func (s *Server) handleStep(ctx context.Context, req *sdk.CallToolRequest, args StepInput) (_ *sdk.CallToolResult, _ StepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("foresight_step", start, retErr, sanitizeToolParams(map[string]any{
			"argument": args.Argument, "use_field": deref(args.UseField),
			"current_probs": args.CurrentProbs, "seed": deref(args.Seed),
		}))
	}()

	if err := s.checkLimit("foresight_step"); err != nil {
		return nil, StepOutput{}, err
	}

	res, err := s.svc.Step(ctx, simulate.StepRequest{
		Argument:     args.Argument,
		UseField:     args.UseField,
		CurrentProbs: args.CurrentProbs,
		Seed:         args.Seed,
	})
	if err != nil {
		return nil, StepOutput{}, err
	}

	return nil, StepOutput{
		Iteration:           res.Iteration,
		Argument:            res.Argument,
		Translated:          res.Translated,
		Realized:            res.Realized,
		Feedback:            res.Feedback,
		ProbabilitiesBefore: res.ProbabilitiesBefore,
		ProbabilitiesAfter:  res.ProbabilitiesAfter,
		Dominant:            res.State.Dominant,
		Entropy:             res.State.Entropy,
		Futures:             res.State.Scenarios,
	}, nil
}

// handleBattle implements the foresight_battle tool.
func (s *Server) handleBattle(ctx context.Context, req *sdk.CallToolRequest, args BattleInput) (_ *sdk.CallToolResult, _ BattleOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("foresight_battle", start, retErr, sanitizeToolParams(map[string]any{
			"argument_a": args.ArgumentA, "argument_b": args.ArgumentB, "rounds": args.Rounds,
			"use_field": deref(args.UseField), "seed": deref(args.Seed), "futures": len(args.Futures),
		}))
	}()

	if err := s.checkLimit("foresight_battle"); err != nil {
		return nil, BattleOutput{}, err
	}

	res, err := s.svc.Battle(ctx, simulate.BattleRequest{
		ArgumentA: args.ArgumentA,
		ArgumentB: args.ArgumentB,
		Rounds:    args.Rounds,
		UseField:  args.UseField,
		Seed:      args.Seed,
		Futures:   args.Futures,
	})
	if err != nil {
		return nil, BattleOutput{}, err
	}

	realized := make([]string, 0, len(res.Rounds))
	for _, r := range res.Rounds {
		realized = append(realized, r.Realized)
	}

	var verdict string
	switch res.Winner {
	case resonance.SideA:
		verdict = "Argument A prevailed"
	case resonance.SideB:
		verdict = "Argument B prevailed"
	default:
		verdict = "Neither argument prevailed"
	}

	return nil, BattleOutput{
		Winner:   res.Winner,
		A:        res.A,
		B:        res.B,
		Rounds:   len(res.Rounds),
		Realized: realized,
		Dominant: res.Final.Dominant,
		Entropy:  res.Final.Entropy,
		Futures:  res.Final.Scenarios,
		Field:    res.FieldContext,
		Summary:  fmt.Sprintf("%s; %s", verdict, describeState(res.Final)),
	}, nil
}

// handleField implements the foresight_field tool.
func (s *Server) handleField(ctx context.Context, req *sdk.CallToolRequest, args FieldInput) (_ *sdk.CallToolResult, _ FieldOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("foresight_field", start, retErr, sanitizeToolParams(map[string]any{}))
	}()

	if err := s.checkLimit("foresight_field"); err != nil {
		return nil, FieldOutput{}, err
	}

	fc, err := s.svc.Field(ctx)
	if err != nil {
		return nil, FieldOutput{}, fmt.Errorf("failed to fetch field context: %w", err)
	}

	return nil, FieldOutput{
		Status:       fc.Status,
		HotTopics:    fc.HotTopics,
		CrisisLevel:  fc.CrisisLevel,
		Headlines:    fc.Headlines,
		FeedsFetched: fc.FeedsFetched,
	}, nil
}

// handleScenarios implements the foresight_scenarios tool.
func (s *Server) handleScenarios(ctx context.Context, req *sdk.CallToolRequest, args ScenariosInput) (_ *sdk.CallToolResult, _ ScenariosOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("foresight_scenarios", start, retErr, sanitizeToolParams(map[string]any{
			"action": args.Action, "id": args.ID, "name": args.Name, "keywords": args.Keywords,
			"core_logic": args.CoreLogic, "active_only": args.ActiveOnly,
		}))
	}()

	if err := s.checkLimit("foresight_scenarios"); err != nil {
		return nil, ScenariosOutput{}, err
	}
	if s.store == nil {
		return nil, ScenariosOutput{}, errNoCatalog
	}

	action := strings.ToLower(strings.TrimSpace(args.Action))
	if action == "" {
		action = ActionList
	}

	switch action {
	case ActionList:
		records, err := s.store.List(ctx, store.ListOptions{ActiveOnly: args.ActiveOnly})
		if err != nil {
			return nil, ScenariosOutput{}, fmt.Errorf("failed to list scenarios: %w", err)
		}
		items := make([]ScenarioItem, 0, len(records))
		for _, r := range records {
			items = append(items, scenarioItem(&r))
		}
		return nil, ScenariosOutput{
			Action:    action,
			Scenarios: items,
			Count:     len(items),
			Message:   fmt.Sprintf("%d scenarios", len(items)),
		}, nil

	case ActionAdd:
		rec, err := s.store.Create(ctx, store.ScenarioInput{
			Name:        args.Name,
			Keywords:    args.Keywords,
			CoreLogic:   args.CoreLogic,
			Description: args.Description,
		})
		if err != nil {
			return nil, ScenariosOutput{}, err
		}
		item := scenarioItem(rec)
		return nil, ScenariosOutput{
			Action:   action,
			Scenario: &item,
			Count:    1,
			Message:  fmt.Sprintf("Added scenario %s (%s)", rec.Name, rec.ID),
		}, nil

	case ActionEnable, ActionDisable:
		if args.ID == "" {
			return nil, ScenariosOutput{}, fmt.Errorf("'id' parameter is required for %s", action)
		}
		rec, err := s.store.SetActive(ctx, args.ID, action == ActionEnable)
		if err != nil {
			return nil, ScenariosOutput{}, err
		}
		item := scenarioItem(rec)
		return nil, ScenariosOutput{
			Action:   action,
			Scenario: &item,
			Count:    1,
			Message:  fmt.Sprintf("Scenario %s is now %s", rec.Name, activeWord(rec.IsActive)),
		}, nil

	case ActionDelete:
		if args.ID == "" {
			return nil, ScenariosOutput{}, fmt.Errorf("'id' parameter is required for delete")
		}
		if err := s.store.Delete(ctx, args.ID); err != nil {
			return nil, ScenariosOutput{}, err
		}
		return nil, ScenariosOutput{
			Action:  action,
			Message: fmt.Sprintf("Deleted scenario %s", args.ID),
		}, nil

	default:
		return nil, ScenariosOutput{}, fmt.Errorf("unknown action %q (valid: list, add, enable, disable, delete)", args.Action)
	}
}

func scenarioItem(r *store.ScenarioRecord) ScenarioItem {
	return ScenarioItem{
		ID:          r.ID,
		Name:        r.Name,
		Keywords:    r.Keywords,
		CoreLogic:   r.CoreLogic,
		Description: r.Description,
		IsDefault:   r.IsDefault,
		IsActive:    r.IsActive,
	}
}

func activeWord(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// describeState renders the dominant scenario and entropy of st.
func describeState(st resonance.State) string {
	if len(st.Scenarios) == 0 {
		return "no scenarios remain"
	}
	top := st.Scenarios[0]
	return fmt.Sprintf("%s leads at %.1f%% (entropy %.2f bits)", top.Name, top.Percent, st.Entropy)
}

// deref returns *p, or nil when p is nil.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
