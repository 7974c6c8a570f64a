// Package providers assembles the provider stack the analysis pipeline
// fetches features through: rate gating, timeouts, response caching, and
// field-wise composition of multiple sources. Every decorator returns a plain
// provider.FeatureProvider so stacks compose in any order.
package providers

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/redis"
)

// Gate blocks until the caller may issue the next request to a provider
// source. Implementations share one gate per source across all workers, not
// one per worker, so the source's usage policy holds regardless of pool size.
type Gate interface {
	Wait(ctx context.Context) error
}

var (
	_ Gate = (*LocalGate)(nil)
	_ Gate = (*redis.IntervalGate)(nil)
	_ Gate = NopGate{}
)

// NopGate never blocks. It stands in for sources without a usage policy and
// for tests.
type NopGate struct{}

// Wait returns immediately.
func (NopGate) Wait(context.Context) error { return nil }

// LocalGate enforces a minimum interval between requests within one process.
// Each waiter reserves the next free slot under the lock, so concurrent
// waiters are granted distinct, strictly spaced slots. A canceled wait leaves
// its slot unused — a gap, never a policy violation.
type LocalGate struct {
	interval time.Duration

	mu       sync.Mutex
	nextFree time.Time
}

// NewLocalGate builds a gate with the given minimum interval. A non-positive
// interval never blocks.
func NewLocalGate(interval time.Duration) *LocalGate {
	return &LocalGate{interval: interval}
}

// Wait blocks until the reserved slot arrives or ctx is done.
func (g *LocalGate) Wait(ctx context.Context) error {
	if g.interval <= 0 {
		return nil
	}

	g.mu.Lock()
	now := time.Now()
	start := g.nextFree
	if start.Before(now) {
		start = now
	}
	g.nextFree = start.Add(g.interval)
	g.mu.Unlock()

	wait := start.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
