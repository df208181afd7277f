// Package ratelimit gates outbound vendor calls with a per-vendor fixed
// window counter kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// incrWindow counts a call and starts the window on the first one.
var incrWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Config holds the limiter settings
type Config struct {
	KeyPrefix    string
	MaxRequests  int
	Window       time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Limiter allows at most MaxRequests calls per vendor in each Window
type Limiter struct {
	rdb    redis.Scripter
	config Config
	logger *slog.Logger
}

// NewLimiter creates a new Limiter
func NewLimiter(rdb redis.Scripter, config Config, logger *slog.Logger) *Limiter {
	return &Limiter{
		rdb:    rdb,
		config: config,
		logger: logger,
	}
}

func (l *Limiter) key(vendor string) string {
	return l.config.KeyPrefix + ":" + vendor
}

// TryAcquire counts one call for vendor and reports whether it is within the limit
func (l *Limiter) TryAcquire(ctx context.Context, vendor string) (bool, error) {
	count, err := incrWindow.Run(ctx, l.rdb, []string{l.key(vendor)}, l.config.Window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to update rate window: %w", err)
	}

	return count <= int64(l.config.MaxRequests), nil
}

// AwaitAcquire polls TryAcquire until a slot is granted or MaxWait elapses.
// Store errors count as a denied poll.
func (l *Limiter) AwaitAcquire(ctx context.Context, vendor string) error {
	deadline := time.Now().Add(l.config.MaxWait)

	for {
		allowed, err := l.TryAcquire(ctx, vendor)
		if err != nil {
			l.logger.Warn("Rate limit check failed",
				slog.String("vendor", vendor),
				slog.String("error", err.Error()),
			)
		}
		if allowed {
			return nil
		}

		metrics.RateLimitDeniedTotal.WithLabelValues(vendor).Inc()

		if time.Now().Add(l.config.PollInterval).After(deadline) {
			return domain.ErrRateLimitTimeout
		}

		l.logger.Debug("Rate limit reached, waiting",
			slog.String("vendor", vendor),
			slog.Duration("poll_interval", l.config.PollInterval),
		)

		timer := time.NewTimer(l.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
