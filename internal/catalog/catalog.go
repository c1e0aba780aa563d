// Package catalog is the durable relational store: libraries, media,
// frames, detections, transcripts, faces, persons, jobs, settings and
// user data live in a single SQLite file with WAL and cascade deletion.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gazehq/gaze-engine/internal/constants"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite catalog.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the catalog at path, applies pragmas, creates
// the schema, runs additive migrations and back-fills, and creates
// indexes last so they may reference migrated columns.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// A single writer connection keeps SQLite lock churn predictable;
	// WAL still allows concurrent readers through the same pool.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.createIndexes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for read-only reporting queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// isBusy reports whether err looks like SQLite writer contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// WithRetry runs fn, retrying on database-busy errors with additive
// backoff (100ms, 200ms, ... over five attempts). Other errors and
// context cancellation pass through immediately.
func (s *Store) WithRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < constants.BusyRetryAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		delay := time.Duration(constants.BusyRetryBaseDelayMs*(attempt+1)) * time.Millisecond
		s.log.Debug("catalog busy, retrying", "attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// IsBusy reports whether err exhausted the retry budget on contention.
// The pipeline uses this to requeue an item instead of failing it.
func IsBusy(err error) bool {
	return isBusy(err)
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
