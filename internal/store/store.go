// Package store defines the ScenarioStore interface for the catalog of
// future scenarios a simulation runs against, along with SQLite and
// in-memory implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/foresight/internal/resonance"
	"github.com/nvandessel/foresight/internal/sanitize"
)

var (
	// ErrNotFound is returned when no scenario has the requested id.
	ErrNotFound = errors.New("scenario not found")

	// ErrInvalidScenario is returned when a new scenario fails validation.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrDuplicateName is returned when a scenario name is already taken.
	ErrDuplicateName = errors.New("scenario name already exists")

	// ErrDefaultScenario is returned when deleting a built-in scenario.
	ErrDefaultScenario = errors.New("default scenarios cannot be deleted")
)

// ScenarioRecord is a persisted catalog entry.
type ScenarioRecord struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Keywords    []string  `json:"keywords" yaml:"keywords"`
	CoreLogic   string    `json:"core_logic" yaml:"core_logic"`
	Description string    `json:"description" yaml:"description"`
	IsDefault   bool      `json:"is_default" yaml:"is_default"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// ToScenario converts the record into an engine scenario. Probability is
// left at 1.0; the engine normalizes on construction.
func (r ScenarioRecord) ToScenario() resonance.Scenario {
	kw := make([]string, len(r.Keywords))
	copy(kw, r.Keywords)
	return resonance.Scenario{
		Name:        r.Name,
		Keywords:    kw,
		CoreLogic:   r.CoreLogic,
		Description: r.Description,
		Probability: 1.0,
	}
}

// ScenarioInput is the user-supplied part of a new scenario.
type ScenarioInput struct {
	Name        string   `json:"name" yaml:"name"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	CoreLogic   string   `json:"core_logic" yaml:"core_logic"`
	Description string   `json:"description" yaml:"description"`
}

// Clean sanitizes the input and checks the required fields. The returned
// error wraps ErrInvalidScenario.
func (in ScenarioInput) Clean() (ScenarioInput, error) {
	out := ScenarioInput{
		Name:        sanitize.ScenarioName(in.Name),
		Keywords:    sanitize.Keywords(in.Keywords),
		CoreLogic:   sanitize.Text(in.CoreLogic, sanitize.MaxDescriptionLength),
		Description: sanitize.Text(in.Description, sanitize.MaxDescriptionLength),
	}

	switch {
	case out.Name == "":
		return out, fmt.Errorf("%w: name is required", ErrInvalidScenario)
	case len(out.Keywords) == 0:
		return out, fmt.Errorf("%w: at least one keyword is required", ErrInvalidScenario)
	case out.CoreLogic == "":
		return out, fmt.Errorf("%w: core_logic is required", ErrInvalidScenario)
	}
	return out, nil
}

// ListOptions filters List results.
type ListOptions struct {
	// ActiveOnly restricts the result to scenarios with IsActive set.
	ActiveOnly bool
}

// ScenarioStore is the scenario catalog. Implementations are safe for
// concurrent use. List returns defaults first, then the rest in creation
// order.
type ScenarioStore interface {
	List(ctx context.Context, opts ListOptions) ([]ScenarioRecord, error)
	Get(ctx context.Context, id string) (*ScenarioRecord, error)
	Create(ctx context.Context, in ScenarioInput) (*ScenarioRecord, error)
	SetActive(ctx context.Context, id string, active bool) (*ScenarioRecord, error)
	Delete(ctx context.Context, id string) error

	// SeedDefaults inserts the built-in scenarios when the catalog holds no
	// default rows. It returns the number of rows inserted.
	SeedDefaults(ctx context.Context) (int, error)

	Close() error
}

// ActiveScenarios returns the active catalog entries as engine scenarios.
// When the catalog is empty or cannot be read the built-in defaults are
// returned along with the read error, if any.
func ActiveScenarios(ctx context.Context, s ScenarioStore) ([]resonance.Scenario, error) {
	if s == nil {
		return resonance.DefaultScenarios(), nil
	}
	records, err := s.List(ctx, ListOptions{ActiveOnly: true})
	if err != nil {
		return resonance.DefaultScenarios(), fmt.Errorf("listing active scenarios: %w", err)
	}
	if len(records) == 0 {
		return resonance.DefaultScenarios(), nil
	}

	out := make([]resonance.Scenario, len(records))
	for i, r := range records {
		out[i] = r.ToScenario()
	}
	return out, nil
}

// defaultInputs returns the built-in scenarios as store inputs.
func defaultInputs() []ScenarioInput {
	defaults := resonance.DefaultScenarios()
	out := make([]ScenarioInput, len(defaults))
	for i, d := range defaults {
		out[i] = ScenarioInput{
			Name:        d.Name,
			Keywords:    d.Keywords,
			CoreLogic:   d.CoreLogic,
			Description: d.Description,
		}
	}
	return out
}
