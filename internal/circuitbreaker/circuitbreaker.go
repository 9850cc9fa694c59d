// Package circuitbreaker trips on a failing upstream so callers fail in
// nanoseconds instead of waiting out another timeout. Breakers are kept per
// upstream route (one per catalog resource kind) and judge health by a
// weighted error rate over a sliding window.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate that trips the breaker
	MinSamples     int           // requests in the window before it may trip
	WindowSeconds  int           // sliding window length, at most 60
	OpenTimeout    time.Duration // time spent open before a probe is allowed
}

// DefaultConfig returns the defaults used for the catalog upstream.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.5,
		MinSamples:     5,
		WindowSeconds:  30,
		OpenTimeout:    15 * time.Second,
	}
}

// Breaker is a closed/open/half-open state machine for one upstream route.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	win      window
	openedAt time.Time
	probing  bool
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg Config) *Breaker {
	return newBreaker(cfg, time.Now)
}

func newBreaker(cfg Config, now func() time.Time) *Breaker {
	return &Breaker{cfg: cfg, now: now, win: newWindow(cfg.WindowSeconds)}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may go upstream. After OpenTimeout an
// open breaker lets exactly one probe through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// Record feeds the outcome of an allowed request. Weight 0 counts as success.
func (b *Breaker) Record(weight float64) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.win.add(weight, now)
	switch b.state {
	case StateHalfOpen:
		b.probing = false
		if weight > 0 {
			b.trip(now)
			return
		}
		b.state = StateClosed
		b.win.reset()
	case StateClosed:
		if weight == 0 {
			return
		}
		if rate, n := b.win.rate(now); n >= b.cfg.MinSamples && rate >= b.cfg.ErrorThreshold {
			b.trip(now)
		}
	}
}

func (b *Breaker) trip(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
}
