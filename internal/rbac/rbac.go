// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package rbac implements role-based access control decisions for Finsight.

It is consulted uniformly at the gateway for every protected call, keyed by a
closed, enumerable set of (resource, action) pairs. Centralizing the check in
one engine avoids permission drift across call sites.

Architecture:

  - Snapshot: The caller's identity (roles + union of permissions), resolved
    once per request from the credential store and threaded through context.
  - Engine: Pure decision functions over a snapshot. No hidden global state,
    no I/O, no clock — trivially testable and cacheable per request.
  - Decision: Deny is a normal, frequently expected value, never an error.
*/
package rbac

// Action is one of the closed set of operations a permission can grant.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"

	// ActionManage is the wildcard action: it grants every other action
	// on its resource.
	ActionManage Action = "manage"
)

// # Protected Resources

// The enumerable resource set. New resources are additive; nothing outside
// this list is ever consulted by the engine.
const (
	ResourceUsers     = "users"
	ResourceDocuments = "documents"
	ResourceAnalyses  = "analyses"
	ResourceRoles     = "roles"
	ResourceSystem    = "system"
	ResourceAuditLogs = "audit_logs"
)

// # System Roles

const (
	// RoleAdmin has manage on every resource.
	RoleAdmin = "admin"
	// RoleAnalyst can read/write/delete documents and analyses.
	RoleAnalyst = "analyst"
	// RoleViewer is the default read-only role assigned at registration.
	RoleViewer = "viewer"
)

// Permission is a single (resource, action) grant.
type Permission struct {
	Resource string `json:"resource"`
	Action   Action `json:"action"`
}

// Snapshot is an immutable view of one identity's authorization state.
//
// It is resolved from the credential store once per request; the engine never
// consults shared mutable state, so concurrent requests cannot interfere.
type Snapshot struct {
	UserID      string       `json:"user_id"`
	Roles       []string     `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// HasRole reports whether the snapshot includes the named role.
func (s *Snapshot) HasRole(name string) bool {
	for _, role := range s.Roles {
		if role == name {
			return true
		}
	}
	return false
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// Reason explains a denial. Empty when allowed.
	Reason string
}

// Allow returns a positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a negative decision with the given reason.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// OwnerPredicate reports whether the given subject owns the resource instance
// under evaluation. It is supplied by the caller; the engine never hardcodes
// ownership semantics.
type OwnerPredicate func(subjectID string) bool

// Engine evaluates authorization decisions. It is stateless and safe for
// concurrent use.
type Engine struct{}

// NewEngine constructs the RBAC decision engine.
func NewEngine() *Engine { return &Engine{} }

// Authorize decides whether the identity may perform action on resource.
//
// # Semantics
//
// The union of the snapshot's permissions is checked for an exact
// (resource, action) match or a "manage" wildcard on the same resource.
// Absence of a match is a plain Deny — deny-by-default, never an error.
func (engine *Engine) Authorize(snapshot *Snapshot, resource string, action Action) Decision {
	if snapshot == nil {
		return Deny("no identity resolved")
	}

	if engine.hasPermission(snapshot, resource, action) {
		return Allow()
	}

	return Deny("missing permission " + resource + ":" + string(action))
}

// AuthorizeOwned decides access to a specific resource INSTANCE.
//
// # Semantics
//
//   - A "manage" grant on the resource bypasses ownership entirely (admins).
//   - Otherwise the base (resource, action) permission must exist AND the
//     caller-supplied predicate must confirm the subject owns the instance.
//
// This models derived permissions such as "viewer may read own profile"
// without hardcoding ownership rules into the engine.
func (engine *Engine) AuthorizeOwned(snapshot *Snapshot, resource string, action Action, owns OwnerPredicate) Decision {
	if snapshot == nil {
		return Deny("no identity resolved")
	}

	if engine.matches(snapshot, resource, ActionManage) {
		return Allow()
	}

	if !engine.hasPermission(snapshot, resource, action) {
		return Deny("missing permission " + resource + ":" + string(action))
	}

	if owns != nil && !owns(snapshot.UserID) {
		return Deny("resource is not owned by the subject")
	}

	return Allow()
}

// hasPermission checks for an exact match or the manage wildcard.
func (engine *Engine) hasPermission(snapshot *Snapshot, resource string, action Action) bool {
	return engine.matches(snapshot, resource, action) ||
		engine.matches(snapshot, resource, ActionManage)
}

// matches checks for one exact (resource, action) pair.
func (engine *Engine) matches(snapshot *Snapshot, resource string, action Action) bool {
	for _, permission := range snapshot.Permissions {
		if permission.Resource == resource && permission.Action == action {
			return true
		}
	}
	return false
}
