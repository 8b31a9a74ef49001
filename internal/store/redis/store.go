// Package redis stores domain pair counters as Redis hashes.
//
// Each ordered pair lives at <prefix>:pair:<domain1>:<domain2> with the fields
// one2two and two2one. Create and increment are Lua scripts, so each one is
// applied atomically by the server and a failed script leaves no partial
// write. Redis has no autoincrement column; Pair.ID is always 0.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/linkswap/internal/api"
	"github.com/djlord-it/linkswap/internal/domain"
	"github.com/djlord-it/linkswap/internal/engine"
	"github.com/djlord-it/linkswap/internal/stats"
)

const (
	fieldOne2Two = "one2two"
	fieldTwo2One = "two2one"
)

// createScript inserts KEYS[1] unless it or the reverse KEYS[2] exists.
// Returns 1 on insert, 0 on duplicate.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'domain1', ARGV[1], 'domain2', ARGV[2], 'one2two', ARGV[3], 'two2one', ARGV[4])
return 1
`)

// incrementScript bumps one counter of an existing pair.
// Returns the new value, or -1 when the pair does not exist.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)

type Store struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
}

type Option func(*Store)

// WithPrefix sets the key namespace. Default "linkswap".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = strings.Trim(prefix, ":") }
}

// WithOpTimeout bounds every Redis round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) { s.opTimeout = d }
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: "linkswap"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(d1, d2 string) string {
	return s.prefix + ":pair:" + d1 + ":" + d2
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// PingContext lets the store act as the health checker for /health.
func (s *Store) PingContext(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Find(ctx context.Context, d1, d2 string) (domain.Pair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vals, err := s.client.HMGet(ctx, s.key(d1, d2), fieldOne2Two, fieldTwo2One).Result()
	if err != nil {
		return domain.Pair{}, fmt.Errorf("redis hmget: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return domain.Pair{}, domain.ErrPairNotFound
	}

	one2two, err := parseCounter(vals[0])
	if err != nil {
		return domain.Pair{}, err
	}
	two2one, err := parseCounter(vals[1])
	if err != nil {
		return domain.Pair{}, err
	}
	return domain.Pair{Domain1: d1, Domain2: d2, One2Two: one2two, Two2One: two2one}, nil
}

func (s *Store) IncrementOne2Two(ctx context.Context, d1, d2 string) error {
	return s.increment(ctx, d1, d2, fieldOne2Two)
}

func (s *Store) IncrementTwo2One(ctx context.Context, d1, d2 string) error {
	return s.increment(ctx, d1, d2, fieldTwo2One)
}

func (s *Store) increment(ctx context.Context, d1, d2, field string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := incrementScript.Run(ctx, s.client, []string{s.key(d1, d2)}, field).Int64()
	if err != nil {
		return fmt.Errorf("redis increment: %w", err)
	}
	if n < 0 {
		return domain.ErrPairNotFound
	}
	return nil
}

// Create inserts (d1, d2). Returns domain.ErrDuplicatePair if either
// orientation already exists.
func (s *Store) Create(ctx context.Context, d1, d2 string, one2two, two2one int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys := []string{s.key(d1, d2), s.key(d2, d1)}
	n, err := createScript.Run(ctx, s.client, keys, d1, d2, one2two, two2one).Int64()
	if err != nil {
		return fmt.Errorf("redis create: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicatePair
	}
	return nil
}

// Totals scans every pair key. It is meant for the periodic stats collector,
// not the request path.
func (s *Store) Totals(ctx context.Context) (domain.Totals, error) {
	var t domain.Totals
	iter := s.client.Scan(ctx, 0, s.prefix+":pair:*", 500).Iterator()
	for iter.Next(ctx) {
		vals, err := s.client.HMGet(ctx, iter.Val(), fieldOne2Two, fieldTwo2One).Result()
		if err != nil {
			return domain.Totals{}, fmt.Errorf("redis hmget: %w", err)
		}
		if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
			continue // deleted between SCAN and HMGET
		}
		one2two, err := parseCounter(vals[0])
		if err != nil {
			return domain.Totals{}, err
		}
		two2one, err := parseCounter(vals[1])
		if err != nil {
			return domain.Totals{}, err
		}
		t.Pairs++
		t.Redirects += one2two + two2one
	}
	if err := iter.Err(); err != nil {
		return domain.Totals{}, fmt.Errorf("redis scan: %w", err)
	}
	return t, nil
}

var errBadCounter = errors.New("redis: counter is not an integer")

func parseCounter(v any) (int64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, errBadCounter
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadCounter, str)
	}
	return n, nil
}

var (
	_ engine.Store   = (*Store)(nil)
	_ stats.Store    = (*Store)(nil)
	_ api.PairReader = (*Store)(nil)
)
