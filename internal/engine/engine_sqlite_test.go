package engine_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/djlord-it/linkswap/internal/domain"
	"github.com/djlord-it/linkswap/internal/engine"
	"github.com/djlord-it/linkswap/internal/store/sqlite"
	"github.com/djlord-it/linkswap/internal/testutil"
)

const (
	shopURL = "https://shop.example.com/item"
	blogURL = "https://blog.partner.org/post"
)

func newSQLiteEngine(t *testing.T) (*engine.Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "links.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return engine.New(store), store
}

func TestSQLite_ScenarioA_FirstPair(t *testing.T) {
	e, store := newSQLiteEngine(t)
	ctx := testutil.TestContext(t)

	d := e.Decide(ctx, engine.Request{From: shopURL, To: blogURL})
	if d.Outcome != domain.OutcomeRedirect || d.URL != blogURL {
		t.Fatalf("expected redirect to %s, got %+v", blogURL, d)
	}

	p, err := store.Find(ctx, "example.com", "partner.org")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.One2Two != 1 || p.Two2One != 0 {
		t.Errorf("counters = (%d, %d), want (1, 0)", p.One2Two, p.Two2One)
	}
}

func TestSQLite_ScenarioB_Interstitial(t *testing.T) {
	e, store := newSQLiteEngine(t)
	ctx := testutil.TestContext(t)

	for i := 0; i < 6; i++ {
		d := e.Decide(ctx, engine.Request{From: shopURL, To: blogURL})
		if d.Outcome != domain.OutcomeRedirect {
			t.Fatalf("call %d: expected redirect, got %+v", i+1, d)
		}
	}

	d := e.Decide(ctx, engine.Request{From: shopURL, To: blogURL})
	if d.Outcome != domain.OutcomeInterstitial || d.URL != shopURL {
		t.Fatalf("expected interstitial back to %s, got %+v", shopURL, d)
	}

	p, err := store.Find(ctx, "example.com", "partner.org")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.One2Two != 6 {
		t.Errorf("one2two = %d, want 6", p.One2Two)
	}
}

func TestSQLite_ScenarioC_ReverseDirection(t *testing.T) {
	e, store := newSQLiteEngine(t)
	ctx := testutil.TestContext(t)

	e.Decide(ctx, engine.Request{From: shopURL, To: blogURL})
	d := e.Decide(ctx, engine.Request{From: blogURL, To: shopURL})
	if d.Outcome != domain.OutcomeRedirect || d.URL != shopURL {
		t.Fatalf("expected redirect to %s, got %+v", shopURL, d)
	}

	p, err := store.Find(ctx, "example.com", "partner.org")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.One2Two != 1 || p.Two2One != 1 {
		t.Errorf("counters = (%d, %d), want (1, 1)", p.One2Two, p.Two2One)
	}
	if _, err := store.Find(ctx, "partner.org", "example.com"); err != domain.ErrPairNotFound {
		t.Errorf("reverse orientation must not exist, got err=%v", err)
	}
}

// Concurrent first-time requests for the same pair must leave exactly one
// row with every redirect counted.
func TestSQLite_ScenarioD_ConcurrentFirstRequests(t *testing.T) {
	e, store := newSQLiteEngine(t)
	ctx := testutil.TestContext(t)

	const n = 5
	decisions := make([]domain.Decision, n)
	testutil.RunConcurrently(n, func(i int) {
		decisions[i] = e.Decide(ctx, engine.Request{From: shopURL, To: blogURL})
	})

	for i, d := range decisions {
		if d.Outcome != domain.OutcomeRedirect {
			t.Errorf("request %d: expected redirect, got %+v", i, d)
		}
	}

	p, err := store.Find(ctx, "example.com", "partner.org")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.One2Two != n {
		t.Errorf("one2two = %d, want %d", p.One2Two, n)
	}
	totals, err := store.Totals(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Pairs != 1 {
		t.Errorf("pairs = %d, want exactly 1 row", totals.Pairs)
	}
}

// Opposite first-time requests racing each other must still produce a
// single row in one orientation.
func TestSQLite_ConcurrentOppositeFirstRequests(t *testing.T) {
	e, store := newSQLiteEngine(t)
	ctx := testutil.TestContext(t)

	testutil.RunConcurrently(6, func(i int) {
		from, to := shopURL, blogURL
		if i%2 == 1 {
			from, to = blogURL, shopURL
		}
		if d := e.Decide(ctx, engine.Request{From: from, To: to}); d.Outcome != domain.OutcomeRedirect {
			t.Errorf("expected redirect, got %+v", d)
		}
	})

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Pairs != 1 || totals.Redirects != 6 {
		t.Errorf("totals = %+v, want 1 pair and 6 redirects", totals)
	}
}
