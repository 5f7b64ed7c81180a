// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/taibuivan/finsight/internal/audit"
	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/ctxutil"
	"github.com/taibuivan/finsight/internal/platform/respond"
	"github.com/taibuivan/finsight/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify access tokens.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the middleware from the sec package's
// concrete token service, allowing us to easily inject mocks during unit
// testing.
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*sec.AuthClaims, error)
}

// Authenticate extracts and verifies the JWT from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, the request proceeds as anonymous; authorization decides
//     what an anonymous caller may reach.
//  3. If present, parse and verify the JWT via [TokenVerifier]. A presented
//     but invalid credential is always rejected, never downgraded to
//     anonymous, and the rejection lands in the trail before the response.
//  4. Inject [*sec.AuthClaims] into the request context for downstream use.
//
// # Parameters
//   - verifier: The TokenVerifier instance.
//   - trail: Audit logger for rejected credential presentations.
//
// # Returns
//   - An [http.Handler] middleware.
func Authenticate(verifier TokenVerifier, trail *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				recordTokenRejection(request, trail, "malformed authorization header")
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Token Verification ─────────────────────────────────────────
			claims, err := verifier.VerifyAccessToken(parts[1])
			if err != nil {
				recordTokenRejection(request, trail, appErrorDetails(err))
				respond.Error(writer, request, err)
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// recordTokenRejection writes the trail entry for a presented-but-rejected
// access token. The raw token value never appears in the entry.
func recordTokenRejection(request *http.Request, trail *audit.Logger, details string) {
	trail.Record(request.Context(), audit.Entry{
		Action:    audit.ActionTokenRejected,
		Outcome:   audit.OutcomeFailure,
		Details:   details,
		IPAddress: RealIP(request),
		UserAgent: request.UserAgent(),
	})
}

// appErrorDetails extracts the machine-readable code for the trail, falling
// back to a generic label so raw error text never leaks into entries.
func appErrorDetails(err error) string {
	if appError := apperr.As(err); appError != nil {
		return appError.Code
	}
	return "token verification failed"
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := ctxutil.GetAuthUser(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
