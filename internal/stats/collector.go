// Package stats periodically reads pair totals from the store and publishes
// them as gauges.
//
// Collection runs once at startup and then on a cron schedule. A failed
// collection is logged and counted; the next scheduled run tries again.
package stats

import (
	"context"
	"log"
	"time"

	"github.com/djlord-it/linkswap/internal/domain"
)

// Store defines the read needed to compute totals.
type Store interface {
	Totals(ctx context.Context) (domain.Totals, error)
}

// Sink receives collection results.
type Sink interface {
	PairTotalsUpdate(pairs, redirects int64)
	StatsCollectionFailed()
}

type Collector struct {
	store    Store
	schedule Schedule
	sink     Sink
	clock    func() time.Time
	after    func(time.Duration) <-chan time.Time
}

func New(store Store, schedule Schedule, sink Sink) *Collector {
	return &Collector{
		store:    store,
		schedule: schedule,
		sink:     sink,
		clock:    time.Now,
		after:    time.After,
	}
}

// Run collects immediately and then at every scheduled time until ctx is
// cancelled.
func (c *Collector) Run(ctx context.Context) {
	log.Printf("stats: started (next=%s)", c.schedule.Next(c.clock()).Format(time.RFC3339))

	c.runCycle(ctx)

	for {
		now := c.clock()
		wait := c.schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			log.Println("stats: stopped")
			return
		case <-c.after(wait):
			c.runCycle(ctx)
		}
	}
}

func (c *Collector) runCycle(ctx context.Context) {
	if _, err := c.Collect(ctx); err != nil && ctx.Err() == nil {
		log.Printf("stats: collection failed: %v", err)
	}
}

// Collect reads totals once and publishes them.
func (c *Collector) Collect(ctx context.Context) (domain.Totals, error) {
	start := c.clock()
	totals, err := c.store.Totals(ctx)
	if err != nil {
		c.sink.StatsCollectionFailed()
		return domain.Totals{}, err
	}

	c.sink.PairTotalsUpdate(totals.Pairs, totals.Redirects)
	log.Printf("stats: pairs=%d redirects=%d (took=%s)",
		totals.Pairs, totals.Redirects, c.clock().Sub(start).Round(time.Millisecond))
	return totals, nil
}
