// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
//
// # Identity Threading
//
// Identity is never ambient state: the verified claims and the per-request RBAC
// snapshot live in the request context and nowhere else, so concurrent requests
// can never share a mutable identity slot.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/finsight/internal/platform/ctxkey"
	"github.com/taibuivan/finsight/internal/platform/sec"
	"github.com/taibuivan/finsight/internal/rbac"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithAuthUser returns a new context with the provided verified claims attached.
func WithAuthUser(ctx context.Context, user *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyUser, user)
}

// GetAuthUser retrieves the [*sec.AuthClaims] from the [context.Context].
// Returns nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, ok := ctx.Value(ctxkey.KeyUser).(*sec.AuthClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithSnapshot returns a new context with the resolved RBAC snapshot attached.
func WithSnapshot(ctx context.Context, snapshot *rbac.Snapshot) context.Context {
	return context.WithValue(ctx, ctxkey.KeySnapshot, snapshot)
}

// GetSnapshot retrieves the per-request [*rbac.Snapshot].
// Returns nil when no snapshot has been resolved for this call.
func GetSnapshot(ctx context.Context) *rbac.Snapshot {
	snapshot, ok := ctx.Value(ctxkey.KeySnapshot).(*rbac.Snapshot)
	if !ok {
		return nil
	}
	return snapshot
}
