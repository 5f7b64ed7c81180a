// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/finsight/internal/audit"
	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/ctxutil"
	"github.com/taibuivan/finsight/internal/platform/middleware"
	"github.com/taibuivan/finsight/internal/platform/sec"
	"github.com/taibuivan/finsight/pkg/pagination"
)

type fakeVerifier struct {
	claims *sec.AuthClaims
	err    error
}

func (verifier *fakeVerifier) VerifyAccessToken(_ string) (*sec.AuthClaims, error) {
	return verifier.claims, verifier.err
}

type fakeAuditStore struct {
	entries []audit.Entry
}

func (store *fakeAuditStore) Insert(_ context.Context, entry *audit.Entry) error {
	store.entries = append(store.entries, *entry)
	return nil
}

func (store *fakeAuditStore) List(_ context.Context, _ audit.Filter, _ pagination.Params) ([]audit.Entry, int, error) {
	return store.entries, len(store.entries), nil
}

func newTrail() (*audit.Logger, *fakeAuditStore) {
	store := &fakeAuditStore{}
	return audit.NewLogger(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func claimsFor(userID string) *sec.AuthClaims {
	return &sec.AuthClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
}

/*
TestAuthenticate_Anonymous tests that a request without an Authorization
header proceeds with no identity attached and no trail entry.
*/
func TestAuthenticate_Anonymous(t *testing.T) {
	trail, store := newTrail()
	handler := middleware.Authenticate(&fakeVerifier{}, trail)(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Nil(t, ctxutil.GetAuthUser(request.Context()))
			writer.WriteHeader(http.StatusOK)
		}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, store.entries)
}

/*
TestAuthenticate_ValidToken tests that verified claims reach the handler.
*/
func TestAuthenticate_ValidToken(t *testing.T) {
	trail, store := newTrail()
	handler := middleware.Authenticate(&fakeVerifier{claims: claimsFor("user-1")}, trail)(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetAuthUser(request.Context())
			assert.NotNil(t, claims)
			assert.Equal(t, "user-1", claims.UserID())
			writer.WriteHeader(http.StatusOK)
		}))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer some.jwt.value")
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, store.entries)
}

/*
TestAuthenticate_InvalidToken tests that a presented but failing credential
is rejected, never downgraded to anonymous, and lands in the trail.
*/
func TestAuthenticate_InvalidToken(t *testing.T) {
	trail, store := newTrail()
	handler := middleware.Authenticate(&fakeVerifier{err: apperr.TokenExpired()}, trail)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run for an invalid credential")
		}))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer expired.jwt.value")
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "TOKEN_EXPIRED")

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, audit.ActionTokenRejected, entry.Action)
	assert.Equal(t, audit.OutcomeFailure, entry.Outcome)
	assert.Equal(t, audit.ActorAnonymous, entry.ActorID)
	assert.Equal(t, "TOKEN_EXPIRED", entry.Details)
	assert.NotContains(t, entry.Details, "expired.jwt.value")
}

/*
TestAuthenticate_MalformedHeader tests the header format check. Each rejected
presentation produces exactly one trail entry.
*/
func TestAuthenticate_MalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing_scheme", "some.jwt.value"},
		{"wrong_scheme", "Basic dXNlcjpwYXNz"},
		{"extra_parts", "Bearer a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trail, store := newTrail()
			handler := middleware.Authenticate(&fakeVerifier{claims: claimsFor("user-1")}, trail)(
				http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
					t.Fatal("handler must not run for a malformed header")
				}))

			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.Header.Set("Authorization", tt.header)
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
			require.Len(t, store.entries, 1)
			assert.Equal(t, audit.ActionTokenRejected, store.entries[0].Action)
		})
	}
}

/*
TestRequireAuth tests the authenticated-only guard.
*/
func TestRequireAuth(t *testing.T) {
	handler := middleware.RequireAuth(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	// Anonymous: blocked.
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Authenticated: passes.
	recorder = httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request = request.WithContext(ctxutil.WithAuthUser(request.Context(), claimsFor("user-1")))
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
