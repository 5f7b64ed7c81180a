// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// backstop sizing/expiry. The map is pruned inline rather than by a janitor
// goroutine: the backstop is only touched while the shared store is down.
const (
	backstopMaxEntries = 10_000
	backstopEntryTTL   = 10 * time.Minute
)

// localBackstop is a per-instance token-bucket limiter used only in fail-open
// mode while the shared counter store is unreachable. It cannot coordinate
// across instances, so its budget is per replica — an approximation that
// still caps the damage of an abusive key during an outage.
type localBackstop struct {
	mu      sync.Mutex
	buckets map[string]*backstopEntry
}

type backstopEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalBackstop() *localBackstop {
	return &localBackstop{buckets: make(map[string]*backstopEntry)}
}

// reserve admits or schedules one request for the key.
//
// # Returns
//   - delay: how long the caller must wait (zero means admit now).
//   - ok: false when the request can never be satisfied under the limit.
func (backstop *localBackstop) reserve(key string, limit int, window time.Duration) (delay time.Duration, ok bool) {
	backstop.mu.Lock()
	defer backstop.mu.Unlock()

	entry, found := backstop.buckets[key]
	if !found {
		backstop.pruneLocked()
		entry = &backstopEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit),
		}
		backstop.buckets[key] = entry
	}
	entry.lastSeen = time.Now()

	reservation := entry.limiter.Reserve()
	if !reservation.OK() {
		return window, false
	}

	delay = reservation.Delay()
	if delay > 0 {
		// Deny instead of queueing: the caller gets a retry-after hint.
		reservation.Cancel()
	}

	return delay, true
}

// pruneLocked evicts idle entries once the map grows past its bound.
// Callers must hold mu.
func (backstop *localBackstop) pruneLocked() {
	if len(backstop.buckets) < backstopMaxEntries {
		return
	}

	cutoff := time.Now().Add(-backstopEntryTTL)
	for key, entry := range backstop.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(backstop.buckets, key)
		}
	}
}
