// Package sqlitestore persists save data in a local SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gravitas-games/sortshift/internal/persist"
	"github.com/gravitas-games/sortshift/internal/persist/sqlitestore/migrations"
	_ "modernc.org/sqlite"
)

// Store is a write-behind persist.Store backed by one SQLite table.
// All rows are loaded on Open; Flush upserts dirty keys in one transaction.
type Store struct {
	sqlDB  *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	cache  map[string]int
	dirty  map[string]struct{}
	closed bool
}

// Open opens (or creates) the database at path, applies migrations and
// loads existing values.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{
		sqlDB:  sqlDB,
		logger: logger,
		cache:  make(map[string]int),
		dirty:  make(map[string]struct{}),
	}
	if err := s.load(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, value FROM save_data`)
	if err != nil {
		return fmt.Errorf("load save data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan save data: %w", err)
		}
		s.cache[key] = value
	}
	return rows.Err()
}

// GetInt returns the stored value or def.
func (s *Store) GetInt(key string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache[key]; ok {
		return v
	}
	return def
}

// SetInt records the value and marks it for the next Flush.
func (s *Store) SetInt(key string, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = value
	s.dirty[key] = struct{}{}
}

// Flush upserts every dirty key in one transaction.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return persist.ErrClosed
	}
	if len(s.dirty) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}
	now := time.Now().UTC().UnixMilli()
	for key := range s.dirty {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO save_data (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, s.cache[key], now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}
	s.dirty = make(map[string]struct{})
	return nil
}

// Close flushes outstanding writes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	flushErr := s.Flush()
	if errors.Is(flushErr, persist.ErrClosed) {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if err := s.sqlDB.Close(); err != nil {
		return fmt.Errorf("close sqlite db: %w", err)
	}
	if flushErr != nil {
		s.logger.Warn("final flush failed", "error", flushErr)
	}
	return flushErr
}
