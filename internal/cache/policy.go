package cache

import (
	"fmt"
	"time"
)

// DefaultTTL is how long an entry stays fresh when no TTL is configured.
const DefaultTTL = time.Hour

// Policy controls caching for every operation of one Client.
type Policy struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultPolicy returns an enabled policy with a one hour TTL.
func DefaultPolicy() Policy {
	return Policy{TTL: DefaultTTL, Enabled: true}
}

// Validate reports a policy that cannot be applied.
func (p Policy) Validate() error {
	if p.TTL < 0 {
		return fmt.Errorf("cache: negative ttl %s", p.TTL)
	}
	return nil
}
