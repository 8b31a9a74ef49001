// Package circuitbreaker fails store access fast after repeated errors.
//
// State is tracked per key, which is the storage backend name. After
// threshold consecutive failures the key opens and Allow rejects callers
// until cooldown has passed. One probe is then let through; its outcome
// closes or reopens the breaker. A probe that never reports back is
// replaced after another cooldown.
package circuitbreaker

import (
	"errors"
	"log"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// StateSink receives open/closed transitions, e.g. for a gauge.
type StateSink interface {
	BreakerStateChanged(key string, open bool)
}

type keyState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
	probeAt             time.Time
}

type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*keyState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
	sink      StateSink // optional, nil = disabled
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*keyState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithClock replaces time.Now. For tests.
func (cb *CircuitBreaker) WithClock(clock func() time.Time) *CircuitBreaker {
	cb.clock = clock
	return cb
}

// WithStateSink reports transitions between closed and open.
func (cb *CircuitBreaker) WithStateSink(sink StateSink) *CircuitBreaker {
	cb.sink = sink
	return cb
}

func (cb *CircuitBreaker) Allow(key string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return nil
	}

	now := cb.clock()
	switch s.state {
	case stateOpen:
		if now.Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			s.probeAt = now
			log.Printf("circuitbreaker: key=%s half-open, probing", key)
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		if now.Sub(s.probeAt) >= cb.cooldown {
			s.probeAt = now
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return
	}
	wasOpen := s.state != stateClosed
	s.state = stateClosed
	s.consecutiveFailures = 0
	if wasOpen {
		log.Printf("circuitbreaker: key=%s closed", key)
		cb.notify(key, false)
	}
}

func (cb *CircuitBreaker) RecordFailure(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		s = &keyState{}
		cb.states[key] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cb.threshold {
		wasClosed := s.state == stateClosed
		s.state = stateOpen
		s.openedAt = cb.clock()
		if wasClosed {
			log.Printf("circuitbreaker: key=%s opened after %d consecutive failures (cooldown=%s)",
				key, s.consecutiveFailures, cb.cooldown)
			cb.notify(key, true)
		}
	}
}

// State returns "closed", "open" or "half-open" for key.
func (cb *CircuitBreaker) State(key string) string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return stateClosed.String()
	}
	return s.state.String()
}

func (cb *CircuitBreaker) notify(key string, open bool) {
	if cb.sink != nil {
		cb.sink.BreakerStateChanged(key, open)
	}
}
