// Package ratelimit implements per-client request-per-minute limits with
// lazy-refill token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// bucket is a token bucket refilled on access, with no background goroutine.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	max      float64
	perSec   float64
	lastFill time.Time
	lastUsed time.Time
}

func newBucket(rpm int64, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(rpm),
		max:      float64(rpm),
		perSec:   float64(rpm) / 60,
		lastFill: now,
		lastUsed: now,
	}
}

func (b *bucket) take(now time.Time) (remaining int64, wait time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUsed = now
	if elapsed := now.Sub(b.lastFill).Seconds(); elapsed > 0 {
		b.tokens = min(b.max, b.tokens+elapsed*b.perSec)
		b.lastFill = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), 0, true
	}
	wait = time.Duration((1 - b.tokens) / b.perSec * float64(time.Second))
	return 0, wait, false
}

func (b *bucket) idleSince(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed.Before(cutoff)
}

// Limiter applies one RPM limit to many clients, each with its own bucket.
type Limiter struct {
	rpm int64
	now func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New returns a limiter allowing rpm requests per minute per client.
// rpm <= 0 allows everything.
func New(rpm int64) *Limiter {
	return &Limiter{rpm: rpm, now: time.Now, buckets: make(map[string]*bucket)}
}

// Allow consumes one request for client.
func (l *Limiter) Allow(client string) Result {
	if l.rpm <= 0 {
		return Result{Allowed: true}
	}
	remaining, wait, ok := l.bucket(client).take(l.now())
	return Result{Allowed: ok, Limit: l.rpm, Remaining: remaining, RetryAfter: wait}
}

func (l *Limiter) bucket(client string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[client]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[client]; ok {
		return b
	}
	b = newBucket(l.rpm, l.now())
	l.buckets[client] = b
	return b
}

// EvictIdle drops buckets unused since cutoff and returns how many went.
// An evicted client starts again with a full bucket.
func (l *Limiter) EvictIdle(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.buckets {
		if b.idleSince(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
