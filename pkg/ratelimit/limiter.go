// Package ratelimit enforces a minimum wall-clock interval between
// outbound API requests so the remote quota is never exceeded, no matter
// how fast the caller issues work.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campaign_sync_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the minimum request interval",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_sync_rate_limit_waits_total",
		Help: "Total number of calls that had to wait for the interval",
	})
)

// DefaultMinInterval is the fallback pacing interval when none is configured.
const DefaultMinInterval = 500 * time.Millisecond

// Limiter paces calls so that consecutive releases are at least
// MinInterval apart. The interval is measured from the actual previous
// release (time.Since uses the monotonic clock), never from a fixed
// schedule, so pacing error does not compound across a long run.
type Limiter struct {
	mu          sync.Mutex
	last        time.Time
	minInterval time.Duration
	logger      zerolog.Logger
}

// NewLimiter creates a limiter with the given minimum interval.
// Non-positive intervals fall back to DefaultMinInterval.
func NewLimiter(minInterval time.Duration, logger zerolog.Logger) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{
		minInterval: minInterval,
		logger:      logger,
	}
}

// MinInterval returns the configured pacing interval.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

// Wait blocks until at least MinInterval has elapsed since the previous
// Wait returned, stamps the new release time, and returns. The first call
// never waits. The only error is context cancellation during the wait.
//
// The design is single-caller sequential; the mutex exists so that a
// future per-credential worker split cannot corrupt the timestamp.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		remaining := l.minInterval - time.Since(l.last)
		if remaining > 0 {
			rateLimitWaitsTotal.Inc()
			rateLimitWaitSeconds.Observe(remaining.Seconds())

			l.logger.Debug().
				Dur("wait", remaining).
				Msg("Pacing request to respect minimum interval")

			timer := time.NewTimer(remaining)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return fmt.Errorf("rate limit wait aborted: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}

	l.last = time.Now()
	return nil
}
