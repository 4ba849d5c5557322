// Package dedupe tracks which conversation turns have already consumed
// their single assistant reply, so that whichever of the transport
// completion or the at-least-once push delivery arrives second can be
// recognized and dropped.
package dedupe

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a claim is remembered. It matches the turn
// window: pushes older than this can no longer match any turn anyway.
const DefaultTTL = 30 * time.Second

// Claims is a claim-once set of correlation keys with TTL eviction. It
// is safe for concurrent use.
type Claims struct {
	mu      sync.Mutex
	ttl     time.Duration
	claimed map[string]time.Time

	done    chan struct{}
	closeMu sync.Once

	now func() time.Time
}

// New creates a claim set whose entries expire after ttl. A background
// sweep keeps memory bounded across a long-lived session; callers must
// Close the set when done with it.
func New(ttl time.Duration) *Claims {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Claims{
		ttl:     ttl,
		claimed: make(map[string]time.Time),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go c.sweep()
	return c
}

// Claim marks the key as consumed. It returns true only for the first
// claimant; later claimants within the TTL get false.
func (c *Claims) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.claimed[key]; ok && c.now().Sub(at) < c.ttl {
		return false
	}
	c.claimed[key] = c.now()
	return true
}

// Release forgets a key before its TTL expires. Used when a turn is
// retired and its correlation id can never match again.
func (c *Claims) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claimed, key)
}

func (c *Claims) sweep() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Claims) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, at := range c.claimed {
		if now.Sub(at) >= c.ttl {
			delete(c.claimed, key)
		}
	}
}

// Close stops the background sweep. Safe to call more than once.
func (c *Claims) Close() {
	c.closeMu.Do(func() {
		close(c.done)
	})
}
