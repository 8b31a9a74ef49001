// Package testutil holds helpers shared by linkswap tests. It must not
// import other linkswap packages.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Epoch is the default starting instant for fake clocks.
var Epoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// FakeClock is a manually advanced clock. Pass clock.Now wherever a
// component accepts a func() time.Time.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// TestContext returns a context with a 5-second timeout, cancelled when the
// test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// RunConcurrently calls fn(0..n-1) from n goroutines released at the same
// moment and returns once all have finished.
func RunConcurrently(n int, fn func(i int)) {
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
}
