// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gateway composes the request admission pipeline for protected routes.

# Pipeline

Every protected request passes through a fixed sequence:

 1. Identity: resolve the authenticated caller from context (set upstream by
    the authentication middleware), or treat the caller as anonymous.
 2. Throttle: check the request against its rate-limit class using the shared
    counter store. Denials short-circuit before any authorization work.
 3. Snapshot: resolve the caller's role and permission snapshot once per
    request and cache it in the context for downstream handlers.
 4. Authorize: evaluate the RBAC decision. Deny-by-default applies.
 5. Audit: every denial (throttle or authorization) is recorded before the
    error response is written.

The gateway never makes policy decisions itself. Policy lives in the rbac
engine; the gateway only orders the checks and guarantees the audit trail.
*/
package gateway

import (
	"context"
	"net/http"

	"github.com/taibuivan/finsight/internal/audit"
	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/ctxutil"
	"github.com/taibuivan/finsight/internal/platform/metrics"
	"github.com/taibuivan/finsight/internal/platform/middleware"
	"github.com/taibuivan/finsight/internal/platform/respond"
	"github.com/taibuivan/finsight/internal/ratelimit"
	"github.com/taibuivan/finsight/internal/rbac"
)

// SnapshotSource resolves the effective roles and permissions of a user.
//
// # Why an interface?
//
// The gateway must not depend on the identity service implementation. The
// interface also lets tests inject fixed snapshots without a database.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (*rbac.Snapshot, error)
}

// Gateway wires throttling, authorization, and audit into reusable middleware.
type Gateway struct {
	limiter *ratelimit.Limiter
	source  SnapshotSource
	engine  *rbac.Engine
	trail   *audit.Logger
}

// New assembles a request admission [Gateway].
func New(limiter *ratelimit.Limiter, source SnapshotSource, engine *rbac.Engine, trail *audit.Logger) *Gateway {
	return &Gateway{
		limiter: limiter,
		source:  source,
		engine:  engine,
		trail:   trail,
	}
}

// # Throttling

// Throttle enforces a rate-limit class on every request passing through.
//
// # Identity Resolution
//
// Authenticated callers are keyed by user ID so a shared office NAT does not
// pool their budgets; anonymous callers fall back to client IP.
//
// # Denial Handling
//
// A denied request is audited, counted, and answered with HTTP 429 carrying
// a Retry-After hint. Counter store failures surface as HTTP 503 only when
// the limiter is configured fail-closed.
func (gateway *Gateway) Throttle(class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()

			identifier := middleware.RealIP(request)
			actorID := ""
			if claims := ctxutil.GetAuthUser(ctx); claims != nil {
				identifier = claims.UserID()
				actorID = claims.UserID()
			}

			result, err := gateway.limiter.Allow(ctx, class.Key(identifier), class.Limit, class.Window)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			if !result.Allowed {
				metrics.RateLimitDenials.WithLabelValues(class.Name).Inc()
				gateway.trail.Record(ctx, audit.Entry{
					ActorID:   actorID,
					Action:    audit.ActionRateLimited,
					Resource:  class.Name,
					Outcome:   audit.OutcomeFailure,
					Details:   "rate limit exceeded for " + class.Key(identifier),
					IPAddress: middleware.RealIP(request),
					UserAgent: request.UserAgent(),
				})
				respond.Error(writer, request, apperr.RateLimited(retrySeconds(result)))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

/*
Check enforces a rate-limit class for an explicit identifier.

Description: Handlers with composite keys (the login endpoint throttles per
"ip:username" pair before credentials are even verified) cannot use the
middleware form. Check runs the same limiter path and returns the same
[apperr.AppError] values the middleware would have written.

Parameters:
  - ctx: context.Context
  - class: ratelimit.Class
  - identifier: string (caller-chosen key within the class)

Returns:
  - error: [apperr.RateLimited] when denied, [apperr.Unavailable] when the
    store is down and the limiter fails closed, nil when admitted
*/
func (gateway *Gateway) Check(ctx context.Context, class ratelimit.Class, identifier string) error {
	result, err := gateway.limiter.Allow(ctx, class.Key(identifier), class.Limit, class.Window)
	if err != nil {
		return err
	}

	if !result.Allowed {
		metrics.RateLimitDenials.WithLabelValues(class.Name).Inc()
		gateway.trail.Record(ctx, audit.Entry{
			Action:   audit.ActionRateLimited,
			Resource: class.Name,
			Outcome:  audit.OutcomeFailure,
			Details:  "rate limit exceeded for " + class.Key(identifier),
		})
		return apperr.RateLimited(retrySeconds(result))
	}

	return nil
}

// # Authorization

// Protect requires an authenticated caller holding the given permission.
//
// # Flow
//  1. Reject anonymous callers with 401 before touching the database.
//  2. Resolve the caller's permission snapshot (cached in context so stacked
//     Protect middlewares resolve it once).
//  3. Evaluate the RBAC decision; deny-by-default.
//  4. Audit and count every denial before responding 403.
func (gateway *Gateway) Protect(resource string, action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()

			claims := ctxutil.GetAuthUser(ctx)
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			snapshot := ctxutil.GetSnapshot(ctx)
			if snapshot == nil {
				resolved, err := gateway.source.Snapshot(ctx, claims.UserID())
				if err != nil {
					respond.Error(writer, request, err)
					return
				}
				snapshot = resolved
				ctx = ctxutil.WithSnapshot(ctx, snapshot)
			}

			decision := gateway.engine.Authorize(snapshot, resource, action)
			if !decision.Allowed {
				gateway.denyAuthz(ctx, request, claims.UserID(), resource, action, decision)
				respond.Error(writer, request, apperr.Forbidden("You do not have permission to perform this action"))
				return
			}

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

/*
RequireOwned evaluates an ownership-scoped decision inside a handler.

Description: Routes like "read a user profile" allow broader roles to read
anyone but restrict base roles to their own records. The middleware form
cannot know the record owner, so handlers call RequireOwned after loading it.
Callers holding a manage grant bypass the ownership restriction.

Parameters:
  - ctx: context.Context (must carry a snapshot resolved by [Gateway.Protect])
  - request: *http.Request (for audit source attribution)
  - resource: string
  - action: rbac.Action
  - ownerID: string (the record owner's user ID)

Returns:
  - error: [apperr.Forbidden] when denied, nil when allowed
*/
func (gateway *Gateway) RequireOwned(ctx context.Context, request *http.Request, resource string, action rbac.Action, ownerID string) error {
	snapshot := ctxutil.GetSnapshot(ctx)
	if snapshot == nil {
		return apperr.Unauthorized("Authentication required")
	}

	decision := gateway.engine.AuthorizeOwned(snapshot, resource, action, func(subjectID string) bool {
		return subjectID == ownerID
	})
	if !decision.Allowed {
		gateway.denyAuthz(ctx, request, snapshot.UserID, resource, action, decision)
		return apperr.Forbidden("You do not have permission to access this resource")
	}

	return nil
}

// denyAuthz records one authorization denial in both the metric stream and
// the audit trail.
func (gateway *Gateway) denyAuthz(ctx context.Context, request *http.Request, actorID, resource string, action rbac.Action, decision rbac.Decision) {
	metrics.AuthzDenials.WithLabelValues(resource, string(action)).Inc()
	gateway.trail.Record(ctx, audit.Entry{
		ActorID:   actorID,
		Action:    audit.ActionAccessDenied,
		Resource:  resource,
		Outcome:   audit.OutcomeFailure,
		Details:   decision.Reason,
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	})
}

// retrySeconds converts a denial's wait hint into whole seconds, never zero.
func retrySeconds(result ratelimit.Result) int {
	seconds := int(result.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
