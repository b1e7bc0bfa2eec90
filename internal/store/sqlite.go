package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements ScenarioStore on a SQLite database at
// <root>/.foresight/foresight.db.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	dbPath  string
	nowFunc func() time.Time
}

// NewSQLiteStore opens (creating if needed) the catalog under projectRoot.
func NewSQLiteStore(projectRoot string) (*SQLiteStore, error) {
	if _, err := EnsureDir(projectRoot); err != nil {
		return nil, err
	}
	return OpenSQLiteStore(DatabasePath(projectRoot))
}

// OpenSQLiteStore opens the catalog at an explicit database path.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		dbPath:  dbPath,
		nowFunc: time.Now,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

const selectColumns = `SELECT id, name, keywords, core_logic, description, is_default, is_active, created_at, updated_at FROM scenarios`

// List returns catalog entries, defaults first and then in insertion order.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectColumns
	if opts.ActiveOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY is_default DESC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	records := make([]ScenarioRecord, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scenarios: %w", err)
	}
	return records, nil
}

// Get returns the scenario with the given id or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUnlocked(ctx, id)
}

func (s *SQLiteStore) getUnlocked(ctx context.Context, id string) (*ScenarioRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create validates and inserts a new, active, non-default scenario.
func (s *SQLiteStore) Create(ctx context.Context, in ScenarioInput) (*ScenarioRecord, error) {
	clean, err := in.Clean()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc().UTC()
	r := ScenarioRecord{
		ID:          uuid.NewString(),
		Name:        clean.Name,
		Keywords:    clean.Keywords,
		CoreLogic:   clean.CoreLogic,
		Description: clean.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRecord(ctx, tx, r); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit scenario: %w", err)
	}
	return &r, nil
}

// SetActive toggles whether a scenario takes part in simulations.
func (s *SQLiteStore) SetActive(ctx context.Context, id string, active bool) (*ScenarioRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE scenarios SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(s.nowFunc()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update scenario: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.getUnlocked(ctx, id)
}

// Delete removes a user-created scenario. Defaults return ErrDefaultScenario.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.getUnlocked(ctx, id)
	if err != nil {
		return err
	}
	if r.IsDefault {
		return fmt.Errorf("%w: %s", ErrDefaultScenario, r.Name)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	return nil
}

// SeedDefaults inserts the built-in scenarios if no default rows exist.
func (s *SQLiteStore) SeedDefaults(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenarios WHERE is_default = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count default scenarios: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.nowFunc().UTC()
	inserted := 0
	for _, in := range defaultInputs() {
		r := ScenarioRecord{
			ID:          uuid.NewString(),
			Name:        in.Name,
			Keywords:    in.Keywords,
			CoreLogic:   in.CoreLogic,
			Description: in.Description,
			IsDefault:   true,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := insertRecord(ctx, tx, r); err != nil {
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit defaults: %w", err)
	}
	return inserted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func insertRecord(ctx context.Context, tx *sql.Tx, r ScenarioRecord) error {
	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scenarios WHERE name = ? COLLATE NOCASE`, r.Name).Scan(&existing); err != nil {
		return fmt.Errorf("failed to check scenario name: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, r.Name)
	}

	keywords, err := json.Marshal(r.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, keywords, core_logic, description, is_default, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, string(keywords), r.CoreLogic, r.Description,
		boolToInt(r.IsDefault), boolToInt(r.IsActive),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert scenario %s: %w", r.Name, err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ScenarioRecord, error) {
	var (
		r                    ScenarioRecord
		keywords             string
		isDefault, isActive  int
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Name, &keywords, &r.CoreLogic, &r.Description,
		&isDefault, &isActive, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan scenario: %w", err)
	}

	if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords for %s: %w", r.ID, err)
	}
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
	r.IsDefault = isDefault != 0
	r.IsActive = isActive != 0
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
