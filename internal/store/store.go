// Package store persists encrypted job environments in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/qserverless/gatewayenv/pkg/types"
)

var (
	// ErrNotFound is returned when no environment is stored for a job.
	ErrNotFound = errors.New("job environment not found")
	// ErrEmptyJobID is returned for an empty job id.
	ErrEmptyJobID = errors.New("job id is empty")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Record describes a stored environment without its values.
type Record struct {
	JobID     string
	Scheme    string
	Variables int
	UpdatedAt time.Time
}

// Store holds encrypted environments keyed by job id. Only ciphertext is
// ever written.
type Store struct {
	path   string
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" gives
// a private in-memory database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and every new connection
	// to :memory: would see an empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS job_env (
			job_id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			scheme TEXT NOT NULL,
			vars_encrypted TEXT NOT NULL,
			var_count INTEGER NOT NULL,
			ctime REAL,
			mtime REAL
		)
	`)
	return err
}

// Save stores env for jobID, replacing any earlier environment.
func (s *Store) Save(ctx context.Context, jobID string, env *types.EncryptedBundle) error {
	if jobID == "" {
		return ErrEmptyJobID
	}
	if env == nil {
		return fmt.Errorf("encrypted bundle is nil")
	}

	values, err := json.Marshal(env.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	now := float64(time.Now().UnixNano()) / 1e9
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_env (job_id, version, scheme, vars_encrypted, var_count, ctime, mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			version = excluded.version,
			scheme = excluded.scheme,
			vars_encrypted = excluded.vars_encrypted,
			var_count = excluded.var_count,
			mtime = excluded.mtime
	`, jobID, env.Version, env.Scheme, string(values), len(env.Values), now, now)
	if err != nil {
		return fmt.Errorf("failed to save job environment: %w", err)
	}

	s.logger.Debug("saved job environment",
		zap.String("job_id", jobID),
		zap.String("scheme", env.Scheme),
		zap.Int("variables", len(env.Values)),
	)
	return nil
}

// Load returns the environment stored for jobID.
func (s *Store) Load(ctx context.Context, jobID string) (*types.EncryptedBundle, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	var (
		env    types.EncryptedBundle
		values string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, scheme, vars_encrypted FROM job_env WHERE job_id = ?
	`, jobID).Scan(&env.Version, &env.Scheme, &values)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job environment: %w", err)
	}

	if err := json.Unmarshal([]byte(values), &env.Values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal values: %w", err)
	}
	return &env, nil
}

// Delete removes the environment stored for jobID.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrEmptyJobID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM job_env WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job environment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return nil
}

// List returns every stored environment, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, scheme, var_count, mtime FROM job_env ORDER BY mtime DESC, job_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list job environments: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r     Record
			mtime float64
		)
		if err := rows.Scan(&r.JobID, &r.Scheme, &r.Variables, &mtime); err != nil {
			return nil, fmt.Errorf("failed to scan job environment: %w", err)
		}
		r.UpdatedAt = time.Unix(0, int64(mtime*1e9))
		records = append(records, r)
	}
	return records, rows.Err()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the store. Closing twice is a no-op; every other call after
// Close returns ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	return nil
}
