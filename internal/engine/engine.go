// Package engine decides, for one go request, whether the visitor is
// redirected to the destination or shown an interstitial that points back at
// the source.
//
// Decisions are driven by a pair of directional counters per domain pair.
// When one direction has been used more than Ratio times the reverse, and
// more than Minimum times in absolute terms, further traffic in that direction
// is interrupted until the reverse direction catches up.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/djlord-it/linkswap/internal/domain"
	"github.com/djlord-it/linkswap/internal/extract"
)

// Store persists domain pair counters. All lookups and mutations address
// the exact orientation (d1, d2) given.
type Store interface {
	// Find returns domain.ErrPairNotFound when no row has this orientation.
	Find(ctx context.Context, d1, d2 string) (domain.Pair, error)
	// IncrementOne2Two and IncrementTwo2One add one to a single counter in
	// their own transaction. They return domain.ErrPairNotFound if the row
	// is missing.
	IncrementOne2Two(ctx context.Context, d1, d2 string) error
	IncrementTwo2One(ctx context.Context, d1, d2 string) error
	// Create inserts a row. Implementations MUST return domain.ErrDuplicatePair
	// if the pair exists in either orientation.
	Create(ctx context.Context, d1, d2 string, one2two, two2one int64) error
}

// MetricsSink records engine metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DecisionRecorded(outcome string, duration time.Duration)
	ConflictRetried()
	StoreError(op string)
}

// Breaker short-circuits store access while the backend is failing.
type Breaker interface {
	Allow(key string) error
	RecordSuccess(key string)
	RecordFailure(key string)
}

// Thresholds controls when a direction is interrupted.
type Thresholds struct {
	Ratio   float64
	Minimum int64
}

// DefaultThresholds returns the ratio 1.2 / minimum 5 policy.
func DefaultThresholds() Thresholds {
	return Thresholds{Ratio: 1.2, Minimum: 5}
}

// Exceeded reports whether traffic in the forward direction should be
// interrupted. Both conditions must hold.
func (t Thresholds) Exceeded(forward, reverse int64) bool {
	return float64(forward) > float64(reverse)*t.Ratio && forward > t.Minimum
}

// Request is one go request as seen by the boundary.
type Request struct {
	From    string
	To      string
	Referer string // empty when the header is absent
}

type Engine struct {
	store      Store
	thresholds Thresholds
	metrics    MetricsSink // optional, nil = disabled
	breaker    Breaker     // optional, nil = disabled
	breakerKey string
	tracer     trace.Tracer
}

func New(store Store) *Engine {
	return &Engine{
		store:      store,
		thresholds: DefaultThresholds(),
		tracer:     otel.Tracer("github.com/djlord-it/linkswap/internal/engine"),
	}
}

func (e *Engine) WithThresholds(t Thresholds) *Engine {
	e.thresholds = t
	return e
}

// WithMetrics attaches a metrics sink to the engine.
func (e *Engine) WithMetrics(sink MetricsSink) *Engine {
	e.metrics = sink
	return e
}

// WithBreaker guards store access with b. key identifies the backend.
func (e *Engine) WithBreaker(b Breaker, key string) *Engine {
	e.breaker = b
	e.breakerKey = key
	return e
}

// Decide runs the full decision for req. It never returns an error: storage
// failures become a Rejected decision with domain.ReasonInternal.
func (e *Engine) Decide(ctx context.Context, req Request) domain.Decision {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.Decide")
	defer span.End()

	d := e.decide(ctx, span, req)

	span.SetAttributes(attribute.String("linkswap.outcome", string(d.Outcome)))
	if d.Outcome == domain.OutcomeRejected {
		span.SetAttributes(attribute.String("linkswap.reason", d.Reason))
	}
	if e.metrics != nil {
		e.metrics.DecisionRecorded(string(d.Outcome), time.Since(start))
	}
	return d
}

func (e *Engine) decide(ctx context.Context, span trace.Span, req Request) domain.Decision {
	from := strings.TrimSpace(req.From)
	to := strings.TrimSpace(req.To)

	if from == "" || to == "" {
		return domain.Rejected(domain.ReasonMissingParameters)
	}
	if utf8.RuneCountInString(from) > extract.MaxURLLength || utf8.RuneCountInString(to) > extract.MaxURLLength {
		return domain.Rejected(domain.ReasonParameterTooLong)
	}
	if !extract.ValidURL(from) || !extract.ValidURL(to) {
		return domain.Rejected(domain.ReasonInvalidURL)
	}

	fromDomain, err := extract.Domain(from)
	if err != nil {
		return domain.Rejected(domain.ReasonDomainExtraction)
	}
	toDomain, err := extract.Domain(to)
	if err != nil {
		return domain.Rejected(domain.ReasonDomainExtraction)
	}
	span.SetAttributes(
		attribute.String("linkswap.from_domain", fromDomain),
		attribute.String("linkswap.to_domain", toDomain),
	)

	// The referer is client-controlled; this only catches honest mismatches.
	if referer := strings.TrimSpace(req.Referer); referer != "" {
		if refDomain, err := extract.Domain(referer); err == nil && refDomain != fromDomain {
			return domain.Rejected(domain.ReasonRefererMismatch)
		}
	}

	if e.breaker != nil {
		if err := e.breaker.Allow(e.breakerKey); err != nil {
			log.Printf("engine: from=%s to=%s store unavailable: %v", fromDomain, toDomain, err)
			span.SetStatus(codes.Error, err.Error())
			return domain.Rejected(domain.ReasonInternal)
		}
	}

	d, err := e.resolve(ctx, fromDomain, toDomain, from, to)
	if isConflict(err) {
		// Another request created or changed the row between our lookup and
		// our write. The row exists now, so one more pass settles it.
		log.Printf("engine: from=%s to=%s conflict, retrying: %v", fromDomain, toDomain, err)
		if e.metrics != nil {
			e.metrics.ConflictRetried()
		}
		d, err = e.resolve(ctx, fromDomain, toDomain, from, to)
	}

	if err != nil {
		log.Printf("engine: from=%s to=%s store error: %v", fromDomain, toDomain, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		if e.breaker != nil {
			// A conflict means the store answered.
			if isConflict(err) {
				e.breaker.RecordSuccess(e.breakerKey)
			} else {
				e.breaker.RecordFailure(e.breakerKey)
			}
		}
		return domain.Rejected(domain.ReasonInternal)
	}

	if e.breaker != nil {
		e.breaker.RecordSuccess(e.breakerKey)
	}
	if d.Outcome == domain.OutcomeInterstitial {
		log.Printf("engine: from=%s to=%s interstitial", fromDomain, toDomain)
	}
	return d
}

// resolve looks the pair up in both orientations and applies the threshold.
// It issues at most one mutation.
func (e *Engine) resolve(ctx context.Context, fromDomain, toDomain, fromURL, toURL string) (domain.Decision, error) {
	pair, err := e.store.Find(ctx, fromDomain, toDomain)
	switch {
	case err == nil:
		if e.thresholds.Exceeded(pair.One2Two, pair.Two2One) {
			return domain.Interstitial(fromURL), nil
		}
		if err := e.store.IncrementOne2Two(ctx, fromDomain, toDomain); err != nil {
			return domain.Decision{}, e.storeFailed("increment_one2two", err)
		}
		return domain.Redirect(toURL), nil
	case !errors.Is(err, domain.ErrPairNotFound):
		return domain.Decision{}, e.storeFailed("find", err)
	}

	// Stored the other way round: two2one is our forward count.
	pair, err = e.store.Find(ctx, toDomain, fromDomain)
	switch {
	case err == nil:
		if e.thresholds.Exceeded(pair.Two2One, pair.One2Two) {
			return domain.Interstitial(fromURL), nil
		}
		if err := e.store.IncrementTwo2One(ctx, toDomain, fromDomain); err != nil {
			return domain.Decision{}, e.storeFailed("increment_two2one", err)
		}
		return domain.Redirect(toURL), nil
	case !errors.Is(err, domain.ErrPairNotFound):
		return domain.Decision{}, e.storeFailed("find_reverse", err)
	}

	if err := e.store.Create(ctx, fromDomain, toDomain, 1, 0); err != nil {
		return domain.Decision{}, e.storeFailed("create", err)
	}
	return domain.Redirect(toURL), nil
}

func (e *Engine) storeFailed(op string, err error) error {
	if e.metrics != nil && !isConflict(err) {
		e.metrics.StoreError(op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrDuplicatePair) || errors.Is(err, domain.ErrPairNotFound)
}
