// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/config"
)

// fakeCounterStore is an in-memory CounterStore with an injectable failure.
type fakeCounterStore struct {
	mu     sync.Mutex
	counts map[string]map[int64]int64
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: make(map[string]map[int64]int64)}
}

func (store *fakeCounterStore) IncrWindow(_ context.Context, key string, windowIndex int64, _ time.Duration) (int64, int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.err != nil {
		return 0, 0, store.err
	}

	windows, ok := store.counts[key]
	if !ok {
		windows = make(map[int64]int64)
		store.counts[key] = windows
	}

	windows[windowIndex]++
	return windows[windowIndex], windows[windowIndex-1], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// atWindowStart pins the limiter clock to the exact start of a sub-window so
// the previous window contributes zero weight.
func atWindowStart(limiter *Limiter, window time.Duration) {
	aligned := time.UnixMilli(window.Milliseconds() * 1_000_000)
	limiter.now = func() time.Time { return aligned }
}

/*
TestLimiter_AllowsUpToLimit tests that exactly Limit requests are admitted
per window and the first over-budget request is denied with a retry hint.
*/
func TestLimiter_AllowsUpToLimit(t *testing.T) {
	store := newFakeCounterStore()
	limiter := New(store, config.FailOpen, discardLogger())
	atWindowStart(limiter, time.Minute)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(context.Background(), "api:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be admitted", i+1)
	}

	result, err := limiter.Allow(context.Background(), "api:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.GreaterOrEqual(t, result.RetryAfter, time.Second)
}

/*
TestLimiter_HourlyBudget tests a 10-per-hour class: the eleventh request is
denied and the retry hint never exceeds the window remainder.
*/
func TestLimiter_HourlyBudget(t *testing.T) {
	store := newFakeCounterStore()
	limiter := New(store, config.FailOpen, discardLogger())
	atWindowStart(limiter, time.Hour)

	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(context.Background(), "upload:user-1", 10, time.Hour)
		require.NoError(t, err)
		require.True(t, result.Allowed, "request %d should be admitted", i+1)
	}

	result, err := limiter.Allow(context.Background(), "upload:user-1", 10, time.Hour)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.GreaterOrEqual(t, result.RetryAfter, time.Second)
	assert.LessOrEqual(t, result.RetryAfter, time.Hour)
}

/*
TestLimiter_Remaining tests the remaining-budget approximation.
*/
func TestLimiter_Remaining(t *testing.T) {
	store := newFakeCounterStore()
	limiter := New(store, config.FailOpen, discardLogger())
	atWindowStart(limiter, time.Minute)

	result, err := limiter.Allow(context.Background(), "api:1.2.3.4", 10, time.Minute)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, 9, result.Remaining)
}

/*
TestLimiter_KeysAreIndependent tests that one caller's burst cannot consume
another caller's budget.
*/
func TestLimiter_KeysAreIndependent(t *testing.T) {
	store := newFakeCounterStore()
	limiter := New(store, config.FailOpen, discardLogger())
	atWindowStart(limiter, time.Minute)

	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(context.Background(), "login:1.2.3.4:alice", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.Allow(context.Background(), "login:1.2.3.4:alice", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = limiter.Allow(context.Background(), "login:1.2.3.4:bob", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

/*
TestLimiter_PreviousWindowWeight tests the sliding approximation: counts from
the previous sub-window still weigh on the current one, decaying linearly.
*/
func TestLimiter_PreviousWindowWeight(t *testing.T) {
	window := time.Minute
	windowStart := time.UnixMilli(window.Milliseconds() * 1_000_000)

	// Previous sub-window already holds 4 requests.
	seed := func() *fakeCounterStore {
		store := newFakeCounterStore()
		store.counts["api:k"] = map[int64]int64{windowStart.UnixMilli()/window.Milliseconds() - 1: 4}
		return store
	}

	// A quarter into the window, 75% of the previous count still applies:
	// 1 + 4×0.75 = 4 > 3.
	limiter := New(seed(), config.FailOpen, discardLogger())
	limiter.now = func() time.Time { return windowStart.Add(15 * time.Second) }

	result, err := limiter.Allow(context.Background(), "api:k", 3, window)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Halfway through, the carryover has decayed: 1 + 4×0.5 = 3 ≤ 3.
	limiter = New(seed(), config.FailOpen, discardLogger())
	limiter.now = func() time.Time { return windowStart.Add(30 * time.Second) }

	result, err = limiter.Allow(context.Background(), "api:k", 3, window)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

/*
TestLimiter_FailOpen tests that store failures in fail-open mode keep
admitting requests, bounded by the per-instance backstop.
*/
func TestLimiter_FailOpen(t *testing.T) {
	store := newFakeCounterStore()
	store.err = errors.New("connection refused")
	limiter := New(store, config.FailOpen, discardLogger())

	// The backstop bucket holds a burst of Limit requests.
	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(context.Background(), "api:k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should pass the backstop", i+1)
	}

	result, err := limiter.Allow(context.Background(), "api:k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.GreaterOrEqual(t, result.RetryAfter, time.Second)
}

/*
TestLimiter_FailClosed tests that store failures in fail-closed mode surface
as UNAVAILABLE instead of admitting traffic.
*/
func TestLimiter_FailClosed(t *testing.T) {
	store := newFakeCounterStore()
	store.err = errors.New("connection refused")
	limiter := New(store, config.FailClosed, discardLogger())

	_, err := limiter.Allow(context.Background(), "api:k", 2, time.Minute)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "UNAVAILABLE"))
}

/*
TestClass_Key tests limiter key derivation.
*/
func TestClass_Key(t *testing.T) {
	class := Class{Name: "login", Limit: 5, Window: time.Minute}
	assert.Equal(t, "login:1.2.3.4:alice", class.Key("1.2.3.4:alice"))
}
