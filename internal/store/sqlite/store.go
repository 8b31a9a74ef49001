// Package sqlite provides a SQLite-backed pair store for single-node
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/djlord-it/linkswap/internal/api"
	"github.com/djlord-it/linkswap/internal/domain"
	"github.com/djlord-it/linkswap/internal/engine"
	"github.com/djlord-it/linkswap/internal/stats"
)

// Store persists domain pairs in SQLite.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// Open opens the database at path and ensures the schema exists.
//
// Write transactions are opened with BEGIN IMMEDIATE so that the reverse
// orientation check and the insert in Create cannot interleave with another
// writer.
func Open(path string, opTimeout time.Duration) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, opTimeout: opTimeout}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// EnsureSchema creates the links table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, querySchema)
	return err
}

func (s *Store) Find(ctx context.Context, d1, d2 string) (domain.Pair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var p domain.Pair
	err := s.db.QueryRowContext(ctx, queryFindPair, d1, d2).Scan(&p.ID, &p.Domain1, &p.Domain2, &p.One2Two, &p.Two2One)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pair{}, domain.ErrPairNotFound
	}
	if err != nil {
		return domain.Pair{}, fmt.Errorf("find pair: %w", err)
	}
	return p, nil
}

func (s *Store) IncrementOne2Two(ctx context.Context, d1, d2 string) error {
	return s.increment(ctx, queryIncrementOne2Two, d1, d2)
}

func (s *Store) IncrementTwo2One(ctx context.Context, d1, d2 string) error {
	return s.increment(ctx, queryIncrementTwo2One, d1, d2)
}

func (s *Store) increment(ctx context.Context, query, d1, d2 string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin increment: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, d1, d2)
	if err != nil {
		return fmt.Errorf("increment pair: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment pair: %w", err)
	}
	if n == 0 {
		return domain.ErrPairNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit increment: %w", err)
	}
	return nil
}

// Create inserts (d1, d2). Returns domain.ErrDuplicatePair if either
// orientation already exists.
func (s *Store) Create(ctx context.Context, d1, d2 string, one2two, two2one int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, queryPairExists, d2, d1).Scan(&one)
	if err == nil {
		return domain.ErrDuplicatePair
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check reverse pair: %w", err)
	}

	if _, err := tx.ExecContext(ctx, queryInsertPair, d1, d2, one2two, two2one); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicatePair
		}
		return fmt.Errorf("insert pair: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (s *Store) Totals(ctx context.Context) (domain.Totals, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var t domain.Totals
	if err := s.db.QueryRowContext(ctx, queryTotals).Scan(&t.Pairs, &t.Redirects); err != nil {
		return domain.Totals{}, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var (
	_ engine.Store   = (*Store)(nil)
	_ stats.Store    = (*Store)(nil)
	_ api.PairReader = (*Store)(nil)
)
