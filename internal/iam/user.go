// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package iam implements the identity and access management core of Finsight.

It owns user accounts, role assignment, and the refresh-token session chain
backing the document analysis platform's authentication surface.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
transport dependencies and encapsulate all business rules related to identity:

  - Service: Orchestrates registration, login, token rotation, and the admin
    account operations.
  - Repository: Abstracted interfaces over PostgreSQL for accounts, roles,
    and refresh tokens.
  - Security: Argon2id password digests and HMAC-signed access tokens via the
    platform sec package.
*/
package iam

import (
	"time"
)

// # Domain Entities

// User represents a registered member of the Finsight platform.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string     `json:"display_name,omitempty"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Roles carries the user's role names when hydrated by the service.
	// Not a database column; stores leave it empty.
	Roles []string `json:"roles,omitempty"`
}

// Role is a named permission bundle.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefreshToken is one link in a session's rotation chain.
//
// # Lineage
//
// The first token of a session has FamilyID equal to its own ID and no
// ParentID. Every rotation inserts a successor carrying the same FamilyID and
// the predecessor's ID as ParentID. Presenting an already-rotated link is
// treated as theft and revokes the entire family.
type RefreshToken struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	// TokenHash is the SHA-256 digest of the opaque token value. The raw
	// value is never persisted.
	TokenHash string     `json:"-"`
	FamilyID  string     `json:"family_id"`
	ParentID  string     `json:"parent_id,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Live reports whether the token can still be presented at the given instant.
func (token *RefreshToken) Live(at time.Time) bool {
	return token.RevokedAt == nil && token.ExpiresAt.After(at)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the IAM domain.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldLogin           = "login"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldRefreshToken    = "refresh_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldUser            = "user"
	FieldMessage         = "message"
	FieldRole            = "role"
	FieldIsActive        = "is_active"
)
