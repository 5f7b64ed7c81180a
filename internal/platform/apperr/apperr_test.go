// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/finsight/internal/platform/apperr"
)

/*
TestAppError_Taxonomy tests that each constructor carries its expected code
and HTTP status.
*/
func TestAppError_Taxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperr.AppError
		code   string
		status int
	}{
		{"invalid_credentials", apperr.InvalidCredentials(), "INVALID_CREDENTIALS", http.StatusUnauthorized},
		{"token_expired", apperr.TokenExpired(), "TOKEN_EXPIRED", http.StatusUnauthorized},
		{"token_invalid", apperr.TokenInvalid("bad"), "TOKEN_INVALID", http.StatusUnauthorized},
		{"reuse_detected", apperr.ReuseDetected(), "REUSE_DETECTED", http.StatusUnauthorized},
		{"unauthorized", apperr.Unauthorized("nope"), "UNAUTHORIZED", http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"rate_limited", apperr.RateLimited(30), "RATE_LIMITED", http.StatusTooManyRequests},
		{"not_found", apperr.NotFound("Role"), "NOT_FOUND", http.StatusNotFound},
		{"conflict", apperr.Conflict("dup"), "CONFLICT", http.StatusConflict},
		{"validation", apperr.ValidationError("bad input"), "VALIDATION_ERROR", http.StatusBadRequest},
		{"internal", apperr.Internal(errors.New("boom")), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"unavailable", apperr.Unavailable("down", errors.New("boom")), "UNAVAILABLE", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

/*
TestAppError_RateLimited tests the retry hint propagation.
*/
func TestAppError_RateLimited(t *testing.T) {
	err := apperr.RateLimited(42)
	assert.Equal(t, 42, err.RetryAfter)
	assert.Contains(t, err.Message, "42s")
}

/*
TestAppError_Unwrap tests cause traversal through wrapped chains.
*/
func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("store unreachable: %w", apperr.Unavailable("down", cause))

	ae := apperr.As(wrapped)
	require.NotNil(t, ae)
	assert.Equal(t, "UNAVAILABLE", ae.Code)
	assert.True(t, errors.Is(wrapped, cause))

	assert.True(t, apperr.IsAppError(wrapped))
	assert.True(t, apperr.IsCode(wrapped, "UNAVAILABLE"))
	assert.False(t, apperr.IsCode(wrapped, "FORBIDDEN"))
}

/*
TestAppError_As_PlainError tests that non-application errors stay unmapped.
*/
func TestAppError_As_PlainError(t *testing.T) {
	plain := errors.New("boom")

	assert.Nil(t, apperr.As(plain))
	assert.False(t, apperr.IsAppError(plain))
	assert.False(t, apperr.IsCode(plain, "INTERNAL_ERROR"))
}
