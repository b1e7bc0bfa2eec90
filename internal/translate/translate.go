// Package translate provides optional pre-translation of argument text into
// the language the scenario keywords are written in.
package translate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nvandessel/foresight/internal/config"
)

// Translator converts text into the configured target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)

	// Available reports whether the translator can make calls.
	Available() bool
}

// Noop returns text unchanged.
type Noop struct{}

// Translate returns text unchanged.
func (Noop) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// Available always returns false; nothing is translated.
func (Noop) Available() bool {
	return false
}

// New returns the translator described by cfg: an OpenAI client when
// translation is enabled and an API key is present, otherwise Noop.
func New(cfg config.TranslationConfig, logger *slog.Logger) Translator {
	if !cfg.Enabled || cfg.APIKey == "" {
		return Noop{}
	}
	if logger != nil {
		logger.Debug("translation enabled", "config", cfg.String())
	}
	return NewOpenAI(cfg)
}

// Mock is a Translator for tests. It records inputs and returns either the
// configured mapping, the input unchanged, or Err.
type Mock struct {
	mu sync.Mutex

	Mapping map[string]string
	Err     error
	Calls   []string
}

// Translate records text and returns the mapped value.
func (m *Mock) Translate(_ context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)
	if m.Err != nil {
		return "", m.Err
	}
	if out, ok := m.Mapping[text]; ok {
		return out, nil
	}
	return text, nil
}

// Available returns true.
func (m *Mock) Available() bool {
	return true
}
