package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements ScenarioStore for testing and for runs without a
// project directory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
	seq     int
	nowFunc func() time.Time
}

type memoryEntry struct {
	record ScenarioRecord
	seq    int
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

// List returns catalog entries, defaults first and then in insertion order.
func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]memoryEntry, 0, len(s.records))
	for _, e := range s.records {
		if opts.ActiveOnly && !e.record.IsActive {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].record.IsDefault != entries[j].record.IsDefault {
			return entries[i].record.IsDefault
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]ScenarioRecord, len(entries))
	for i, e := range entries {
		out[i] = copyRecord(e.record)
	}
	return out, nil
}

// Get returns the scenario with the given id or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r := copyRecord(e.record)
	return &r, nil
}

// Create validates and inserts a new, active, non-default scenario.
func (s *MemoryStore) Create(ctx context.Context, in ScenarioInput) (*ScenarioRecord, error) {
	clean, err := in.Clean()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.insertUnlocked(clean, false)
	if err != nil {
		return nil, err
	}
	out := copyRecord(r)
	return &out, nil
}

// SetActive toggles whether a scenario takes part in simulations.
func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) (*ScenarioRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.record.IsActive = active
	e.record.UpdatedAt = s.nowFunc().UTC()
	s.records[id] = e

	r := copyRecord(e.record)
	return &r, nil
}

// Delete removes a user-created scenario. Defaults return ErrDefaultScenario.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.record.IsDefault {
		return fmt.Errorf("%w: %s", ErrDefaultScenario, e.record.Name)
	}
	delete(s.records, id)
	return nil
}

// SeedDefaults inserts the built-in scenarios if no default rows exist.
func (s *MemoryStore) SeedDefaults(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.records {
		if e.record.IsDefault {
			return 0, nil
		}
	}

	inserted := 0
	for _, in := range defaultInputs() {
		if _, err := s.insertUnlocked(in, true); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) insertUnlocked(in ScenarioInput, isDefault bool) (ScenarioRecord, error) {
	for _, e := range s.records {
		if strings.EqualFold(e.record.Name, in.Name) {
			return ScenarioRecord{}, fmt.Errorf("%w: %s", ErrDuplicateName, in.Name)
		}
	}

	now := s.nowFunc().UTC()
	r := ScenarioRecord{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Keywords:    append([]string(nil), in.Keywords...),
		CoreLogic:   in.CoreLogic,
		Description: in.Description,
		IsDefault:   isDefault,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.seq++
	s.records[r.ID] = memoryEntry{record: r, seq: s.seq}
	return r, nil
}

func copyRecord(r ScenarioRecord) ScenarioRecord {
	r.Keywords = append([]string{}, r.Keywords...)
	return r
}
