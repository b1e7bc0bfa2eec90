package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/foresight/internal/simulate"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <argument>",
		Short: "Run a multi-step simulation of an argument",
		Long: `Push an argument into the field of futures and iterate.

Each step applies the argument (and current news topics unless --no-field),
realizes one future, and feeds that realization back into the field.

Examples:
  foresight simulate "AI regulation stalls while compute keeps scaling"
  foresight simulate "drought and migration" --steps 8 --seed 42
  foresight simulate "new alliances" --futures-file futures.yaml --no-field`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			steps, _ := cmd.Flags().GetInt("steps")
			temperature, _ := cmd.Flags().GetFloat64("temperature")

			futures, err := futuresFromFlag(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Simulate(cmd.Context(), simulate.Request{
				Argument:    args[0],
				Steps:       steps,
				UseField:    useFieldFlag(cmd),
				Seed:        seedFlag(cmd),
				Futures:     futures,
				Temperature: temperature,
			})
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, res)
			}
			renderSimulation(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Int("steps", 0, "Number of iterations (default from config)")
	addRunFlags(cmd)
	cmd.Flags().String("futures-file", "", "YAML file of futures to use instead of the catalog")
	return cmd
}

func newStepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step [argument]",
		Short: "Advance the field by a single iteration",
		Long: `Run one iteration over the active catalog. Without an argument the
step is driven by feedback only. Pass --probs to resume from a previous
distribution.

Examples:
  foresight step
  foresight step "grid failures spread" --probs Tech-Acceleration=0.4,Fragmentation=0.6`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			temperature, _ := cmd.Flags().GetFloat64("temperature")
			rawProbs, _ := cmd.Flags().GetStringToString("probs")

			probs, err := parseProbs(rawProbs)
			if err != nil {
				return err
			}

			var argument string
			if len(args) == 1 {
				argument = args[0]
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Step(cmd.Context(), simulate.StepRequest{
				Argument:     argument,
				UseField:     useFieldFlag(cmd),
				CurrentProbs: probs,
				Seed:         seedFlag(cmd),
				Temperature:  temperature,
			})
			if err != nil {
				return fmt.Errorf("step failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, res)
			}
			renderStep(cmd.OutOrStdout(), res)
			return nil
		},
	}

	addRunFlags(cmd)
	cmd.Flags().StringToString("probs", nil, "Probabilities to resume from, as name=value pairs")
	return cmd
}

func newBattleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battle <argument-a> <argument-b>",
		Short: "Let two arguments compete for the same field",
		Long: `Apply two arguments in alternation for several rounds and report which
one pulled the field toward the futures it favors.

Example:
  foresight battle "open-source AI wins" "AI gets locked down" --rounds 6`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			rounds, _ := cmd.Flags().GetInt("rounds")
			temperature, _ := cmd.Flags().GetFloat64("temperature")

			futures, err := futuresFromFlag(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Battle(cmd.Context(), simulate.BattleRequest{
				ArgumentA:   args[0],
				ArgumentB:   args[1],
				Rounds:      rounds,
				UseField:    useFieldFlag(cmd),
				Seed:        seedFlag(cmd),
				Futures:     futures,
				Temperature: temperature,
			})
			if err != nil {
				return fmt.Errorf("battle failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, res)
			}
			renderBattle(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().Int("rounds", 0, "Number of rounds (default from config)")
	addRunFlags(cmd)
	cmd.Flags().String("futures-file", "", "YAML file of futures to use instead of the catalog")
	return cmd
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the starting distribution of the active scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			withField, _ := cmd.Flags().GetBool("field")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, fc, err := a.Service.State(cmd.Context(), withField)
			if err != nil {
				return fmt.Errorf("failed to build state: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"state":         st,
					"field_context": fc,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.Title.Render("Active futures"))
			renderState(cmd.OutOrStdout(), st)
			return nil
		},
	}

	cmd.Flags().Bool("field", false, "Annotate scenarios with matching current headlines")
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("seed", 0, "Seed for a reproducible run")
	cmd.Flags().Bool("no-field", false, "Do not fetch world-news field context")
	cmd.Flags().Float64("temperature", 0, "Noise scale between 0.1 and 2.0 (default from config)")
}

// futuresFromFlag reads --futures-file, a YAML list of futures.
func futuresFromFlag(cmd *cobra.Command) ([]simulate.FutureInput, error) {
	path, _ := cmd.Flags().GetString("futures-file")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read futures file: %w", err)
	}
	var futures []simulate.FutureInput
	if err := yaml.Unmarshal(data, &futures); err != nil {
		return nil, fmt.Errorf("failed to parse futures file: %w", err)
	}
	if len(futures) == 0 {
		return nil, fmt.Errorf("futures file %s defines no futures", path)
	}
	return futures, nil
}

func parseProbs(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	probs := make(map[string]float64, len(raw))
	for name, v := range raw {
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || p < 0 {
			return nil, fmt.Errorf("invalid probability for %s: %q", name, v)
		}
		probs[strings.TrimSpace(name)] = p
	}
	return probs, nil
}
