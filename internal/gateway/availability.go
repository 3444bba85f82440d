// Package gateway fronts a model client with availability caching, a
// per-chunk result cache, and a cancellation registry for in-flight
// requests.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/webnovel-tools/enhancer/internal/providers"
)

const defaultWaitTimeout = 10 * time.Second

// AvailabilityCache caches the host's availability status with a TTL.
// At most one probe runs at a time; concurrent callers wait for the
// in-flight result instead of issuing duplicates.
type AvailabilityCache struct {
	probe       func(context.Context) (*providers.AvailabilityStatus, error)
	ttl         time.Duration
	waitTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	status   *providers.AvailabilityStatus
	inflight chan struct{} // closed when the running probe finishes
}

// NewAvailabilityCache wraps probe with TTL caching. now is injectable for
// tests; nil means time.Now.
func NewAvailabilityCache(probe func(context.Context) (*providers.AvailabilityStatus, error), ttl time.Duration, now func() time.Time) *AvailabilityCache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{
		probe:       probe,
		ttl:         ttl,
		waitTimeout: defaultWaitTimeout,
		now:         now,
	}
}

// Check returns the cached status while it is fresh, otherwise probes the
// host. Callers arriving while a probe is running wait for it, bounded by
// a secondary timeout; a failed wait degrades to an unavailable status
// rather than an error.
func (c *AvailabilityCache) Check(ctx context.Context) *providers.AvailabilityStatus {
	c.mu.Lock()

	if c.status != nil && c.now().Sub(c.status.CheckedAt) < c.ttl {
		status := c.status
		c.mu.Unlock()
		return status
	}

	if c.inflight != nil {
		wait := c.inflight
		c.mu.Unlock()

		select {
		case <-wait:
			c.mu.Lock()
			status := c.status
			c.mu.Unlock()
			if status != nil {
				return status
			}
		case <-time.After(c.waitTimeout):
		case <-ctx.Done():
		}
		return &providers.AvailabilityStatus{
			Available: false,
			Reason:    "availability check timed out",
			CheckedAt: c.now(),
		}
	}

	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	status, err := c.probe(ctx)
	if err != nil || status == nil {
		status = &providers.AvailabilityStatus{
			Available: false,
			Reason:    "availability probe failed",
			CheckedAt: c.now(),
		}
		if err != nil {
			status.Reason = "availability probe failed: " + err.Error()
		}
	}
	status.CheckedAt = c.now()

	c.mu.Lock()
	c.status = status
	c.inflight = nil
	c.mu.Unlock()
	close(done)

	return status
}

// Invalidate discards the cached status so the next Check probes again.
func (c *AvailabilityCache) Invalidate() {
	c.mu.Lock()
	c.status = nil
	c.mu.Unlock()
}
