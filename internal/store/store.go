// Package store provides the SQLite persistence layer for pipeline
// runs and the textual factors they produce.
//
// All data lives in a single SQLite database file:
// - Runs: one row per pipeline invocation with its window and status
// - Factors: one row per textual factor (possibly several per run
//   when tag splitting is on)
// - Observations: the individual observations inside each factor
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RusaUB/nexintel/internal/factor"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.nexintel/nexintel.db"

// Run records one pipeline invocation.
type Run struct {
	ID          string
	AgentName   string
	WindowStart time.Time
	WindowEnd   time.Time
	EventCount  int
	FactorCount int
	Status      string // "ok" or "error"
	Error       string
	CreatedAt   time.Time
}

// FactorRow is a persisted textual factor with its run provenance.
type FactorRow struct {
	ID           int64
	RunID        string
	Date         string
	AgentName    string
	Preference   string
	LengthTokens int
	ObsCount     int
	CreatedAt    time.Time
}

// ObservationRow is a persisted observation.
type ObservationRow struct {
	ID       int64
	FactorID int64
	Text     string
	Asset    string
	Rating   int
	Tags     string // comma-joined canonical tags
}

// ListOpts controls pagination and filtering for List operations.
type ListOpts struct {
	Limit     int
	Offset    int
	AgentName string
	Date      string
}

// Stats holds observability counts about the store.
type Stats struct {
	RunCount         int64
	FactorCount      int64
	ObservationCount int64
	DBSizeBytes      int64
}

// Config holds configuration for New.
type Config struct {
	DBPath string
}

// Store defines the persistence interface.
type Store interface {
	BeginRun(ctx context.Context, agentName string, start, end time.Time) (string, error)
	FinishRun(ctx context.Context, runID string, eventCount, factorCount int, runErr error) error

	SaveFactors(ctx context.Context, runID string, factors []*factor.TextualFactor) error
	ListFactors(ctx context.Context, opts ListOpts) ([]*FactorRow, error)
	ListObservations(ctx context.Context, factorID int64) ([]*ObservationRow, error)

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store on modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// New creates a SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func New(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// BeginRun inserts a run row in "running" state and returns its ID.
func (s *SQLiteStore) BeginRun(ctx context.Context, agentName string, start, end time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, agent_name, window_start, window_end, status, created_at)
		VALUES (?, ?, ?, ?, 'running', ?)`,
		id, agentName, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as ok or error with its final counts.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, eventCount, factorCount int, runErr error) error {
	status, errText := "ok", ""
	if runErr != nil {
		status = "error"
		errText = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET event_count = ?, factor_count = ?, status = ?, error = ?
		WHERE id = ?`,
		eventCount, factorCount, status, errText, runID)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
