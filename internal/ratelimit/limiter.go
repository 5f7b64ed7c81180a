// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit implements sliding-window request throttling over a shared
counter store.

Since service instances are horizontally scaled, the limiter state lives in
Redis so every replica enforces the same budget. The window is approximated
with two fixed sub-window counters per key:

	weighted = current + previous × (1 − elapsedFraction)

which smooths bursts at window boundaries while keeping O(1) storage per key
(two counters, no per-request timestamps).

Failure policy: if the shared store is unreachable, the limiter degrades in a
CONFIGURED direction — fail-open routes through a per-instance token-bucket
backstop, fail-closed surfaces UNAVAILABLE. It never panics the caller.
*/
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/config"
	"github.com/taibuivan/finsight/internal/platform/metrics"
)

// Class is one independently budgeted operation family. Distinct classes use
// distinct keys, so an upload burst cannot consume the general API budget.
type Class struct {
	// Name prefixes every key of this class.
	Name string
	// Limit is the number of requests allowed per Window.
	Limit int
	// Window is the sliding window length.
	Window time.Duration
}

// Key derives the full limiter key for one caller identity.
func (c Class) Key(identifier string) string {
	return c.Name + ":" + identifier
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed bool
	// Remaining approximates how many requests are left in the window.
	Remaining int
	// RetryAfter is how long a denied caller should wait until at least one
	// slot frees. Zero when allowed.
	RetryAfter time.Duration
}

// CounterStore is the atomic shared-counter primitive backing the limiter.
type CounterStore interface {
	// IncrWindow atomically increments the counter for the given sub-window
	// and returns the incremented count together with the previous
	// sub-window's count. Implementations MUST execute this as one atomic
	// read-modify-write on the shared store — a read-then-write split across
	// round trips would let concurrent callers race past the limit.
	IncrWindow(ctx context.Context, key string, windowIndex int64, ttl time.Duration) (current, previous int64, err error)
}

// Limiter enforces per-key sliding-window limits.
type Limiter struct {
	store    CounterStore
	failMode string
	fallback *localBackstop
	logger   *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New constructs a Limiter.
//
// failMode must be [config.FailOpen] or [config.FailClosed]; config.Load has
// already validated it.
func New(store CounterStore, failMode string, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:    store,
		failMode: failMode,
		fallback: newLocalBackstop(),
		logger:   logger,
		now:      time.Now,
	}
}

// Allow decides whether the caller identified by key may proceed under the
// given limit and window.
//
// The increment and the check are a single atomic store operation, so two
// instances racing on the same key can never both admit the request that
// crosses the threshold.
func (limiter *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	currentTime := limiter.now()
	windowMillis := window.Milliseconds()
	windowIndex := currentTime.UnixMilli() / windowMillis
	elapsedMillis := currentTime.UnixMilli() % windowMillis
	elapsedFraction := float64(elapsedMillis) / float64(windowMillis)

	// Keys expire after two windows: by then the sub-window can no longer
	// contribute to any weighted count.
	current, previous, err := limiter.store.IncrWindow(ctx, key, windowIndex, 2*window)
	if err != nil {
		return limiter.failDegraded(key, limit, window, err)
	}

	weighted := float64(current) + float64(previous)*(1.0-elapsedFraction)

	if weighted <= float64(limit) {
		return Result{
			Allowed:   true,
			Remaining: limit - int(math.Ceil(weighted)),
		}, nil
	}

	return Result{
		Allowed:    false,
		RetryAfter: retryAfter(weighted, float64(limit), previous, window, elapsedMillis),
	}, nil
}

// retryAfter computes the seconds until the weighted count readmits one
// request, bounded by the remainder of the current sub-window.
func retryAfter(weighted, limit float64, previous int64, window time.Duration, elapsedMillis int64) time.Duration {
	remainder := window - time.Duration(elapsedMillis)*time.Millisecond

	// The previous sub-window's contribution decays linearly; once enough of
	// it has aged out, one slot frees before the boundary.
	if previous > 0 {
		overshoot := weighted - limit
		decay := time.Duration(overshoot / float64(previous) * float64(window))
		if decay < remainder {
			return ceilSeconds(decay)
		}
	}

	return ceilSeconds(remainder)
}

// ceilSeconds rounds up to whole seconds with a floor of one second, suitable
// for a Retry-After header.
func ceilSeconds(d time.Duration) time.Duration {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

// failDegraded applies the configured failure direction when the shared
// store is unreachable.
func (limiter *Limiter) failDegraded(key string, limit int, window time.Duration, cause error) (Result, error) {
	metrics.RateLimitStoreFailures.WithLabelValues(limiter.failMode).Inc()

	if limiter.failMode == config.FailClosed {
		limiter.logger.Error("rate_limit_store_unreachable_failing_closed",
			slog.String("key", key),
			slog.Any("error", cause),
		)
		return Result{}, apperr.Unavailable("Rate limiter temporarily unavailable", cause)
	}

	// Fail-open: availability wins, but a per-instance token bucket still
	// backstops the worst abuse while the store is down.
	limiter.logger.Warn("rate_limit_store_unreachable_failing_open",
		slog.String("key", key),
		slog.Any("error", cause),
	)

	if delay, ok := limiter.fallback.reserve(key, limit, window); !ok || delay > 0 {
		return Result{Allowed: false, RetryAfter: ceilSeconds(delay)}, nil
	}

	return Result{Allowed: true, Remaining: 0}, nil
}
