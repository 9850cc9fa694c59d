package circuitbreaker

import (
	"sync"
	"time"
)

// Registry hands out one Breaker per name, created on first use.
type Registry struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry returns an empty registry whose breakers use cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, now: time.Now, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for name.
func (r *Registry) For(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = newBreaker(r.cfg, r.now)
	r.breakers[name] = b
	return b
}

// States returns the state of every breaker created so far.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
