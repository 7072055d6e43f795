package engine

import (
	"context"
	"time"

	"github.com/odvcencio/pagestream/pkg/observability"
)

// DefaultSweepInterval is how often idle engines are reaped.
const DefaultSweepInterval = 300000 * time.Millisecond

// Sweeper periodically reaps engines that no session references.
type Sweeper struct {
	pool     *Pool
	ref      Referencer
	interval time.Duration
	logger   *observability.Logger
}

// NewSweeper creates a sweeper. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(pool *Pool, ref Referencer, interval time.Duration, logger *observability.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = observability.Discard()
	}
	return &Sweeper{
		pool:     pool,
		ref:      ref,
		interval: interval,
		logger:   logger.WithComponent("engine_sweeper"),
	}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.pool.Sweep(ctx, s.ref); n > 0 {
				s.logger.Info("sweep complete", "reaped", n, "remaining", s.pool.Len())
			}
		}
	}
}
