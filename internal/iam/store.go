// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package iam

import (
	"context"
	"errors"
	"time"

	"github.com/taibuivan/finsight/internal/rbac"
	"github.com/taibuivan/finsight/pkg/pagination"
)

// ErrAlreadyRotated is returned by [TokenRepository.Rotate] when the current
// token was revoked between lookup and rotation. The caller must treat this
// exactly like presenting a revoked token: revoke the family.
var ErrAlreadyRotated = errors.New("refresh token already rotated")

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByUsername returns the account with the given username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		Update persists changes to mutable profile fields.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Update(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		TouchLastLogin records a successful authentication timestamp.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	TouchLastLogin(context context.Context, userID string) error

	/*
		SetActive toggles the account's active flag.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - active: bool

		Returns:
		  - error: Persistence failures
	*/
	SetActive(context context.Context, userID string, active bool) error

	/*
		List returns a page of accounts ordered by creation time. A non-empty
		search term filters on username and email, case-insensitively.

		Parameters:
		  - context: context.Context
		  - search: string
		  - params: pagination.Params

		Returns:
		  - []User: Page of accounts
		  - int: Total matching count
		  - error: Retrieval failures
	*/
	List(context context.Context, search string, params pagination.Params) ([]User, int, error)
}

// # Role Data Access

// RoleRepository defines the data access contract for roles and grants.
type RoleRepository interface {

	/*
		FindByName returns the role with the given unique name.

		Parameters:
		  - context: context.Context
		  - name: string

		Returns:
		  - *Role: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByName(context context.Context, name string) (*Role, error)

	/*
		List returns every defined role.

		Parameters:
		  - context: context.Context

		Returns:
		  - []Role: All roles
		  - error: Retrieval failures
	*/
	List(context context.Context) ([]Role, error)

	/*
		RolesForUser returns the roles assigned to the given user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []Role: Assigned roles
		  - error: Retrieval failures
	*/
	RolesForUser(context context.Context, userID string) ([]Role, error)

	/*
		PermissionsForUser returns the union of permissions granted through
		the user's roles, deduplicated.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []rbac.Permission: Effective grants
		  - error: Retrieval failures
	*/
	PermissionsForUser(context context.Context, userID string) ([]rbac.Permission, error)

	/*
		Assign grants the role to the user. Idempotent.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - roleID: string

		Returns:
		  - error: Persistence failures
	*/
	Assign(context context.Context, userID, roleID string) error

	/*
		Remove withdraws the role from the user. Idempotent.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - roleID: string

		Returns:
		  - error: Persistence failures
	*/
	Remove(context context.Context, userID, roleID string) error
}

// # Refresh Token Data Access

// TokenRepository defines the data access contract for refresh-token chains.
type TokenRepository interface {

	/*
		Create persists the root token of a new session family.

		Parameters:
		  - context: context.Context
		  - token: *RefreshToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *RefreshToken) error

	/*
		FindByHash returns the token matching the given digest, whether live,
		revoked, or expired. Revoked tokens must remain findable so a replay
		can be recognized as such.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *RefreshToken: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByHash(context context.Context, tokenHash string) (*RefreshToken, error)

	/*
		Rotate atomically revokes the current token and inserts its successor
		in one transaction. If the current token was already revoked by a
		concurrent presentation, [ErrAlreadyRotated] is returned and the
		successor is not inserted.

		Parameters:
		  - context: context.Context
		  - currentID: string
		  - successor: *RefreshToken

		Returns:
		  - error: [ErrAlreadyRotated] on a lost race, persistence failures
	*/
	Rotate(context context.Context, currentID string, successor *RefreshToken) error

	/*
		RevokeFamily revokes every live token sharing the family ID.

		Parameters:
		  - context: context.Context
		  - familyID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeFamily(context context.Context, familyID string) error

	/*
		RevokeAllForUser revokes every live token belonging to the user,
		across all families.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID string) error

	/*
		DeleteExpired physically removes tokens whose ExpiresAt precedes the
		cutoff. Callers pass expiry minus a grace window so recently expired
		rows stay queryable for incident forensics.

		Parameters:
		  - context: context.Context
		  - before: time.Time

		Returns:
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context, before time.Time) error
}
