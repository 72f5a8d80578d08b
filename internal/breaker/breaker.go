// Package breaker implements a per-source circuit breaker. A source that
// fails repeatedly is skipped for a cooling-off window instead of being
// hammered on every search.
package breaker

import (
	"sync"
	"time"
)

// State is the current position of a breaker.
type State string

const (
	// StateClosed means the source is healthy and calls flow through.
	StateClosed State = "closed"
	// StateOpen means the source is skipped until the retry window elapses.
	StateOpen State = "open"
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 1
	defaultRetryAfter       = 30 * time.Second
)

// StateChange reports a transition caused by recording an outcome.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker tracks consecutive failures for one source. Safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	successThreshold int
	retryAfter       time.Duration

	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes close an open
// breaker once probing resumes.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithRetryAfter sets how long an open breaker blocks calls before letting a
// probe through.
func WithRetryAfter(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.retryAfter = d
		}
	}
}

// New creates a closed breaker.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		retryAfter:       defaultRetryAfter,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether calls should be skipped. Once the retry window has
// elapsed it returns false so a probe call can go through; the breaker stays
// open until that probe succeeds enough times.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return false
	}
	return time.Since(b.openedAt) < b.retryAfter
}

// RecordFailure notes a failed call. useFallback is true when the source
// should now be skipped; change.Opened is true on the closed-to-open edge.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	b.failures++

	if b.state == StateOpen {
		// Failed probe: restart the retry window.
		b.openedAt = time.Now()
		return true, StateChange{}
	}
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess notes a successful call. usePrimary is true when the source
// is considered healthy; change.Closed is true on the open-to-closed edge.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateClosed {
		return true, StateChange{}
	}

	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, StateChange{Closed: true}
	}
	return false, StateChange{}
}

// Reset returns the breaker to its initial closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.openedAt = time.Time{}
}
