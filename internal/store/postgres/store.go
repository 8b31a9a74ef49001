package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/djlord-it/linkswap/internal/api"
	"github.com/djlord-it/linkswap/internal/domain"
	"github.com/djlord-it/linkswap/internal/engine"
	"github.com/djlord-it/linkswap/internal/stats"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements engine.Store using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration // 0 = rely on the caller's context
}

// New creates a new PostgreSQL store with the given database connection pool.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
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

// Find returns the row stored with orientation (d1, d2).
// Returns domain.ErrPairNotFound if there is none.
func (s *Store) Find(ctx context.Context, d1, d2 string) (domain.Pair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var p domain.Pair
	err := s.db.QueryRowContext(ctx, queryFindPair, d1, d2).Scan(
		&p.ID,
		&p.Domain1,
		&p.Domain2,
		&p.One2Two,
		&p.Two2One,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pair{}, domain.ErrPairNotFound
	}
	if err != nil {
		return domain.Pair{}, err
	}
	return p, nil
}

// IncrementOne2Two adds one to one2two for the row (d1, d2).
func (s *Store) IncrementOne2Two(ctx context.Context, d1, d2 string) error {
	return s.increment(ctx, queryIncrementOne2Two, d1, d2)
}

// IncrementTwo2One adds one to two2one for the row (d1, d2).
func (s *Store) IncrementTwo2One(ctx context.Context, d1, d2 string) error {
	return s.increment(ctx, queryIncrementTwo2One, d1, d2)
}

// increment runs a single-counter UPDATE in its own transaction.
// PostgreSQL takes the row lock before evaluating the SET, so concurrent
// increments never lose updates.
func (s *Store) increment(ctx context.Context, query, d1, d2 string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, d1, d2)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrPairNotFound
	}

	return tx.Commit()
}

// Create inserts the row (d1, d2) in a transaction.
// Returns domain.ErrDuplicatePair if either orientation already exists.
func (s *Store) Create(ctx context.Context, d1, d2 string, one2two, two2one int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The unique constraint only covers one orientation. Holding the pair
	// lock while checking the reverse row closes the gap between a creator
	// of (a, b) and a creator of (b, a).
	if _, err := tx.ExecContext(ctx, queryLockPair, pairKey(d1, d2)); err != nil {
		return err
	}

	var one int
	err = tx.QueryRowContext(ctx, queryPairExists, d2, d1).Scan(&one)
	if err == nil {
		return domain.ErrDuplicatePair
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, queryInsertPair, d1, d2, one2two, two2one)
	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicatePair
		}
		return err
	}

	return tx.Commit()
}

// Totals returns the number of rows and the sum of all counters.
func (s *Store) Totals(ctx context.Context) (domain.Totals, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var t domain.Totals
	if err := s.db.QueryRowContext(ctx, queryTotals).Scan(&t.Pairs, &t.Redirects); err != nil {
		return domain.Totals{}, err
	}
	return t, nil
}

// pairKey is the orientation-independent lock key for a domain pair.
func pairKey(d1, d2 string) string {
	if d2 < d1 {
		d1, d2 = d2, d1
	}
	return d1 + "|" + d2
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	// Fall back to message matching for wrapped driver errors.
	errStr := err.Error()
	return strings.Contains(errStr, uniqueViolation) || strings.Contains(errStr, "duplicate key")
}

// Compile-time interface assertions
var (
	_ engine.Store   = (*Store)(nil)
	_ stats.Store    = (*Store)(nil)
	_ api.PairReader = (*Store)(nil)
)
