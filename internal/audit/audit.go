// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package audit implements the append-only security event trail.

Every authentication attempt, authorization denial, token rotation or
revocation, and rate-limit denial produces exactly one entry. Entries are
immutable: the application never updates or deletes them, and raw secrets
(passwords, token values) never appear — only hashed or truncated identifiers.

# Durability Contract

Record is fire-and-forget from the caller's perspective, but a dropped entry
is a compliance violation, not acceptable best-effort loss. A failed write is
therefore escalated to the operational alerting path (error log + metric)
instead of being silently swallowed.
*/
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/finsight/internal/platform/metrics"
	"github.com/taibuivan/finsight/pkg/pagination"
	"github.com/taibuivan/finsight/pkg/uuid"
)

// ActorAnonymous identifies unauthenticated callers in the trail.
const ActorAnonymous = "anonymous"

// Entry outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// # Recorded Actions

const (
	ActionUserRegistered     = "user_registered"
	ActionLoginSuccess       = "login_success"
	ActionLoginFailed        = "login_failed"
	ActionLogout             = "logout"
	ActionPasswordChanged    = "password_changed"
	ActionProfileUpdated     = "profile_updated"
	ActionTokenRejected      = "token_rejected"
	ActionTokenRotated       = "token_rotated"
	ActionTokenReuseDetected = "token_reuse_detected"
	ActionTokensRevoked      = "tokens_revoked"
	ActionFingerprintChanged = "session_fingerprint_changed"
	ActionAccessDenied       = "access_denied"
	ActionRateLimited        = "rate_limited"
	ActionRoleAssigned       = "role_assigned"
	ActionRoleRemoved        = "role_removed"
	ActionAccountToggled     = "account_status_changed"
)

// Entry is one immutable audit record.
type Entry struct {
	ID string `json:"id"`
	// ActorID is the acting user's ID, or [ActorAnonymous].
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Outcome    string    `json:"outcome"`
	Details    string    `json:"details,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows audit queries for the admin listing endpoint.
type Filter struct {
	ActorID string
	Action  string
}

// Store is the append-only persistence contract for audit entries.
type Store interface {

	/*
		Insert persists a single immutable entry.

		Parameters:
		  - context: context.Context
		  - entry: *Entry

		Returns:
		  - error: Persistence failures
	*/
	Insert(context context.Context, entry *Entry) error

	/*
		List returns entries matching the filter, newest first.

		Parameters:
		  - context: context.Context
		  - filter: Filter
		  - params: pagination.Params

		Returns:
		  - []Entry: Matching entries
		  - int: Total match count
		  - error: Retrieval failures
	*/
	List(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error)
}

// writeTimeout bounds the audit insert independently of the caller.
const writeTimeout = 5 * time.Second

// Logger records security events.
type Logger struct {
	store Store
	log   *slog.Logger
}

// NewLogger constructs an audit [Logger].
func NewLogger(store Store, logger *slog.Logger) *Logger {
	return &Logger{store: store, log: logger}
}

/*
Record persists one audit entry.

Description: Fills in identity defaults (ID, timestamp, anonymous actor) and
writes synchronously. The write is detached from the caller's cancellation so
a client disconnect mid-request cannot drop the trail entry, while its own
timeout keeps the call bounded.

Parameters:
  - context: context.Context (cancellation is intentionally not inherited)
  - entry: Entry
*/
func (logger *Logger) Record(requestContext context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.New()
	}
	if entry.ActorID == "" {
		entry.ActorID = ActorAnonymous
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	// Detach from the request lifecycle: the entry must land even if the
	// transport cancels mid-flight.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(requestContext), writeTimeout)
	defer cancel()

	if err := logger.store.Insert(writeCtx, &entry); err != nil {
		// Operational alerting path. A lost audit entry must page someone.
		metrics.AuditWriteFailures.Inc()
		logger.log.ErrorContext(writeCtx, "audit_write_failed",
			slog.String("action", entry.Action),
			slog.String("actor_id", entry.ActorID),
			slog.String("resource", entry.Resource),
			slog.Any("error", err),
		)
	}
}

// List exposes the trail for the admin endpoint.
func (logger *Logger) List(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error) {
	return logger.store.List(context, filter, params)
}
