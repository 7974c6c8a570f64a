package redis

import (
	"context"
	"time"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// IntervalGate enforces a minimum interval between provider calls across all
// workers sharing the Redis instance. A pass claims a keyed lease via SET NX
// with the interval as its TTL; the next pass is possible only after the
// lease expires. Nothing ever releases a lease early, so the gate needs no
// ownership token.
type IntervalGate struct {
	client     *Client
	name       string
	interval   time.Duration
	retryDelay time.Duration
	logger     logging.Logger
}

// GateOption customizes an IntervalGate.
type GateOption func(*IntervalGate)

// WithGateRetryDelay sets the poll delay used when the lease TTL cannot be
// read, default 50ms.
func WithGateRetryDelay(d time.Duration) GateOption {
	return func(g *IntervalGate) { g.retryDelay = d }
}

// NewIntervalGate builds a gate named after the provider source it throttles.
func NewIntervalGate(client *Client, name string, interval time.Duration, log logging.Logger, opts ...GateOption) *IntervalGate {
	if log == nil {
		log = logging.NewNopLogger()
	}
	g := &IntervalGate{
		client:     client,
		name:       name,
		interval:   interval,
		retryDelay: 50 * time.Millisecond,
		logger:     log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *IntervalGate) key() string {
	return "landquant:gate:" + g.name
}

// TryPass attempts to claim the next slot without blocking. It returns false
// when another worker holds the current interval.
func (g *IntervalGate) TryPass(ctx context.Context) (bool, error) {
	if g.interval <= 0 {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, g.key(), "1", g.interval).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to claim rate gate "+g.name)
	}
	return ok, nil
}

// Wait blocks until a slot is claimed or ctx is done. On contention it sleeps
// out the remaining lease instead of polling.
func (g *IntervalGate) Wait(ctx context.Context) error {
	for {
		ok, err := g.TryPass(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining, err := g.client.PTTL(ctx, g.key()).Result()
		if err != nil || remaining <= 0 {
			remaining = g.retryDelay
		}
		if remaining > g.interval {
			remaining = g.interval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(remaining):
		}
	}
}
