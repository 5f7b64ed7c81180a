// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/finsight/internal/audit"
	"github.com/taibuivan/finsight/internal/gateway"
	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/config"
	"github.com/taibuivan/finsight/internal/platform/ctxutil"
	"github.com/taibuivan/finsight/internal/platform/respond"
	"github.com/taibuivan/finsight/internal/platform/sec"
	"github.com/taibuivan/finsight/internal/ratelimit"
	"github.com/taibuivan/finsight/internal/rbac"
	"github.com/taibuivan/finsight/pkg/pagination"
)

// # Fakes

type fakeCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (store *fakeCounterStore) IncrWindow(_ context.Context, key string, _ int64, _ time.Duration) (int64, int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.counts == nil {
		store.counts = make(map[string]int64)
	}
	store.counts[key]++
	return store.counts[key], 0, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (store *fakeAuditStore) Insert(_ context.Context, entry *audit.Entry) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.entries = append(store.entries, *entry)
	return nil
}

func (store *fakeAuditStore) List(_ context.Context, _ audit.Filter, _ pagination.Params) ([]audit.Entry, int, error) {
	return store.entries, len(store.entries), nil
}

func (store *fakeAuditStore) has(action string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, entry := range store.entries {
		if entry.Action == action {
			return true
		}
	}
	return false
}

type fakeSnapshotSource struct {
	snapshot *rbac.Snapshot
	err      error
}

func (source *fakeSnapshotSource) Snapshot(_ context.Context, _ string) (*rbac.Snapshot, error) {
	return source.snapshot, source.err
}

func newGateway(t *testing.T, source gateway.SnapshotSource) (*gateway.Gateway, *fakeAuditStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(&fakeCounterStore{}, config.FailOpen, logger)
	trail := &fakeAuditStore{}

	return gateway.New(limiter, source, rbac.NewEngine(), audit.NewLogger(trail, logger)), trail
}

func authedRequest(t *testing.T, userID string) *http.Request {
	t.Helper()

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	claims := &sec.AuthClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
	return request.WithContext(ctxutil.WithAuthUser(request.Context(), claims))
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	return envelope.Code
}

// # Throttling

/*
TestGateway_Throttle tests that the middleware admits within budget and
answers 429 with a Retry-After hint once the budget is spent.
*/
func TestGateway_Throttle(t *testing.T) {
	gate, trail := newGateway(t, &fakeSnapshotSource{})
	class := ratelimit.Class{Name: "api", Limit: 2, Window: time.Hour}

	handler := gate.Throttle(class)(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/api", nil)
		request.RemoteAddr = "1.2.3.4:5678"
		handler.ServeHTTP(recorder, request)
		require.Equal(t, http.StatusOK, recorder.Code)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api", nil)
	request.RemoteAddr = "1.2.3.4:5678"
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, recorder))
	assert.True(t, trail.has(audit.ActionRateLimited))
}

/*
TestGateway_Throttle_PerIdentity tests that authenticated callers are keyed
by user ID, so one caller cannot exhaust another's budget.
*/
func TestGateway_Throttle_PerIdentity(t *testing.T) {
	gate, _ := newGateway(t, &fakeSnapshotSource{})
	class := ratelimit.Class{Name: "api", Limit: 1, Window: time.Hour}

	handler := gate.Throttle(class)(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, authedRequest(t, "user-1"))
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, authedRequest(t, "user-1"))
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)

	// A different identity still has its own budget.
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, authedRequest(t, "user-2"))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestGateway_Check tests the handler-level throttle used for composite keys.
*/
func TestGateway_Check(t *testing.T) {
	gate, trail := newGateway(t, &fakeSnapshotSource{})
	class := ratelimit.Class{Name: "login", Limit: 1, Window: time.Hour}

	require.NoError(t, gate.Check(context.Background(), class, "1.2.3.4:alice"))

	err := gate.Check(context.Background(), class, "1.2.3.4:alice")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "RATE_LIMITED"))
	assert.True(t, trail.has(audit.ActionRateLimited))

	// A different composite key is unaffected.
	assert.NoError(t, gate.Check(context.Background(), class, "1.2.3.4:bob"))
}

// # Authorization

/*
TestGateway_Protect tests the admission pipeline outcomes: 401 for anonymous,
403 with an audit entry for missing permission, pass-through when granted.
*/
func TestGateway_Protect(t *testing.T) {
	snapshot := &rbac.Snapshot{
		UserID:      "user-1",
		Roles:       []string{rbac.RoleViewer},
		Permissions: []rbac.Permission{{Resource: rbac.ResourceDocuments, Action: rbac.ActionRead}},
	}
	gate, trail := newGateway(t, &fakeSnapshotSource{snapshot: snapshot})

	var sawSnapshot bool
	handler := gate.Protect(rbac.ResourceDocuments, rbac.ActionRead)(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			sawSnapshot = ctxutil.GetSnapshot(request.Context()) != nil
			writer.WriteHeader(http.StatusOK)
		}))

	// Anonymous: rejected before any snapshot work.
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Granted: passes with the snapshot cached in context.
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, authedRequest(t, "user-1"))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, sawSnapshot)

	// Missing permission: 403, audited.
	denied := gate.Protect(rbac.ResourceAuditLogs, rbac.ActionRead)(
		http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
	recorder = httptest.NewRecorder()
	denied.ServeHTTP(recorder, authedRequest(t, "user-1"))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, recorder))
	assert.True(t, trail.has(audit.ActionAccessDenied))
}

/*
TestGateway_Protect_SourceError tests that snapshot resolution failures
propagate their own status instead of a generic denial.
*/
func TestGateway_Protect_SourceError(t *testing.T) {
	gate, _ := newGateway(t, &fakeSnapshotSource{err: apperr.Forbidden("Account is deactivated")})

	handler := gate.Protect(rbac.ResourceDocuments, rbac.ActionRead)(
		http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, authedRequest(t, "user-1"))

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

/*
TestGateway_RequireOwned tests instance ownership decisions inside handlers.
*/
func TestGateway_RequireOwned(t *testing.T) {
	viewer := &rbac.Snapshot{
		UserID:      "user-1",
		Permissions: []rbac.Permission{{Resource: rbac.ResourceUsers, Action: rbac.ActionRead}},
	}
	admin := &rbac.Snapshot{
		UserID:      "admin-1",
		Permissions: []rbac.Permission{{Resource: rbac.ResourceUsers, Action: rbac.ActionManage}},
	}

	gate, trail := newGateway(t, &fakeSnapshotSource{})
	request := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)

	// Owner with the base permission reads their own record.
	ctx := ctxutil.WithSnapshot(context.Background(), viewer)
	assert.NoError(t, gate.RequireOwned(ctx, request, rbac.ResourceUsers, rbac.ActionRead, "user-1"))

	// The same caller is denied someone else's record, and the denial lands
	// in the trail.
	err := gate.RequireOwned(ctx, request, rbac.ResourceUsers, rbac.ActionRead, "user-2")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, "FORBIDDEN"))
	assert.True(t, trail.has(audit.ActionAccessDenied))

	// A manage grant bypasses ownership.
	ctx = ctxutil.WithSnapshot(context.Background(), admin)
	assert.NoError(t, gate.RequireOwned(ctx, request, rbac.ResourceUsers, rbac.ActionRead, "user-2"))

	// No resolved snapshot means no identity.
	err = gate.RequireOwned(context.Background(), request, rbac.ResourceUsers, rbac.ActionRead, "user-1")
	assert.True(t, apperr.IsCode(err, "UNAUTHORIZED"))
}
