package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/linkswap/internal/domain"
)

func TestKey(t *testing.T) {
	s := New(nil, WithPrefix("test:"))
	if got := s.key("example.com", "partner.org"); got != "test:pair:example.com:partner.org" {
		t.Errorf("key = %q", got)
	}
}

func TestNew_DefaultPrefix(t *testing.T) {
	s := New(nil)
	if s.prefix != "linkswap" {
		t.Errorf("prefix = %q, want linkswap", s.prefix)
	}
}

func TestParseCounter(t *testing.T) {
	if n, err := parseCounter("42"); err != nil || n != 42 {
		t.Errorf("parseCounter(\"42\") = %d, %v", n, err)
	}
	if _, err := parseCounter("x"); !errors.Is(err, errBadCounter) {
		t.Errorf("expected errBadCounter, got %v", err)
	}
	if _, err := parseCounter(7); !errors.Is(err, errBadCounter) {
		t.Errorf("expected errBadCounter for non-string, got %v", err)
	}
}

// openTestStore connects to REDIS_ADDR under a throwaway prefix.
// Tests are skipped when no Redis server is configured.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "linkswap-test:" + uuid.NewString()
	s := New(client, WithPrefix(prefix))

	ctx := context.Background()
	if err := s.PingContext(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		_ = client.Close()
	})
	return s
}

func TestStore_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Find(ctx, "example.com", "partner.org"); !errors.Is(err, domain.ErrPairNotFound) {
		t.Fatalf("expected ErrPairNotFound, got %v", err)
	}
	if err := s.IncrementOne2Two(ctx, "example.com", "partner.org"); !errors.Is(err, domain.ErrPairNotFound) {
		t.Fatalf("expected ErrPairNotFound on missing increment, got %v", err)
	}

	if err := s.Create(ctx, "example.com", "partner.org", 1, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, "partner.org", "example.com", 1, 0); !errors.Is(err, domain.ErrDuplicatePair) {
		t.Fatalf("expected ErrDuplicatePair for reverse, got %v", err)
	}
	if err := s.IncrementOne2Two(ctx, "example.com", "partner.org"); err != nil {
		t.Fatalf("increment one2two: %v", err)
	}
	if err := s.IncrementTwo2One(ctx, "example.com", "partner.org"); err != nil {
		t.Fatalf("increment two2one: %v", err)
	}

	p, err := s.Find(ctx, "example.com", "partner.org")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.One2Two != 2 || p.Two2One != 1 {
		t.Errorf("counters = (%d, %d), want (2, 1)", p.One2Two, p.Two2One)
	}

	totals, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Pairs != 1 || totals.Redirects != 3 {
		t.Errorf("totals = %+v, want {Pairs:1 Redirects:3}", totals)
	}
}
