// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// PostgreSQL implementations of the IAM repositories.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/dberr"
	"github.com/taibuivan/finsight/internal/rbac"
	"github.com/taibuivan/finsight/pkg/pagination"
)

// userColumns is the canonical scan order for iam.account rows.
const userColumns = "id, username, email, passwordhash, displayname, isactive, lastloginat, createdat, updatedat"

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record into the iam.account table.
//
// A unique-constraint violation on username or email surfaces as a 409
// Conflict so concurrent registrations of the same handle stay client-safe.
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO iam.account (
			id, username, email, passwordhash, displayname, isactive, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err)
	}

	return nil
}

// FindByID retrieves a user record by their unique ID.
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	const query = "SELECT " + userColumns + " FROM iam.account WHERE id = $1"
	return repository.findOne(ctx, query, id, "User")
}

// FindByEmail retrieves a user record by their unique email address.
//
// # Returns
//
// Returns [*User] if found, or [apperr.NotFound] if no account exists.
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = "SELECT " + userColumns + " FROM iam.account WHERE email = $1"
	return repository.findOne(ctx, query, email, "User")
}

// FindByUsername retrieves a user record by their unique username.
func (repository *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	const query = "SELECT " + userColumns + " FROM iam.account WHERE username = $1"
	return repository.findOne(ctx, query, username, "User")
}

// findOne runs a single-row account query with the canonical column order.
func (repository *PostgresUserRepository) findOne(ctx context.Context, query, argument, entity string) (*User, error) {
	user := &User{}
	err := repository.pool.QueryRow(ctx, query, argument).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.IsActive,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(entity)
		}
		return nil, fmt.Errorf("postgres_user_repo_find_failed: %w", err)
	}

	return user, nil
}

// Update persists changes to a user's mutable profile fields.
func (repository *PostgresUserRepository) Update(ctx context.Context, user *User) error {
	const query = `
		UPDATE iam.account
		SET displayname = $2, updatedat = $3
		WHERE id = $1`

	user.UpdatedAt = time.Now()
	_, err := repository.pool.Exec(ctx, query, user.ID, user.DisplayName, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_failed: %w", err)
	}

	return nil
}

// UpdatePassword updates only the password hash for a specific user.
func (repository *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, newHash string) error {
	const query = `
		UPDATE iam.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

// TouchLastLogin records the timestamp of a successful authentication.
func (repository *PostgresUserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	const query = "UPDATE iam.account SET lastloginat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_touch_last_login_failed: %w", err)
	}
	return nil
}

// SetActive toggles the account's active flag.
func (repository *PostgresUserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	const query = "UPDATE iam.account SET isactive = $2, updatedat = $3 WHERE id = $1"
	result, err := repository.pool.Exec(ctx, query, userID, active, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_set_active_failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}
	return nil
}

// List returns a page of accounts ordered by creation time, newest first.
// A non-empty search term matches username or email, case-insensitively.
func (repository *PostgresUserRepository) List(ctx context.Context, search string, params pagination.Params) ([]User, int, error) {
	where := "1=1"
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where = "(username ILIKE $1 OR email ILIKE $1)"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM iam.account WHERE " + where
	if err := repository.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_count_failed: %w", err)
	}

	listQuery := fmt.Sprintf(
		"SELECT "+userColumns+" FROM iam.account WHERE "+where+" ORDER BY createdat DESC LIMIT $%d OFFSET $%d",
		len(args)+1, len(args)+2,
	)
	args = append(args, params.Limit, params.Offset())
	rows, err := repository.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var user User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.DisplayName,
			&user.IsActive,
			&user.LastLoginAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_user_repo_scan_failed: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_rows_failed: %w", err)
	}

	return users, total, nil
}

// ── Role Repository ──────────────────────────────────────────────────────────

// PostgresRoleRepository implements the RoleRepository interface using pgx.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

// FindByName retrieves a role by its unique name.
func (repository *PostgresRoleRepository) FindByName(ctx context.Context, name string) (*Role, error) {
	const query = "SELECT id, name, description, createdat FROM iam.role WHERE name = $1"

	role := &Role{}
	err := repository.pool.QueryRow(ctx, query, name).Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Role")
		}
		return nil, fmt.Errorf("postgres_role_repo_find_failed: %w", err)
	}

	return role, nil
}

// List returns every defined role ordered by name.
func (repository *PostgresRoleRepository) List(ctx context.Context) ([]Role, error) {
	const query = "SELECT id, name, description, createdat FROM iam.role ORDER BY name"

	rows, err := repository.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_list_failed: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_scan_failed: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_role_repo_rows_failed: %w", err)
	}

	return roles, nil
}

// RolesForUser returns the roles assigned to the given user.
func (repository *PostgresRoleRepository) RolesForUser(ctx context.Context, userID string) ([]Role, error) {
	const query = `
		SELECT r.id, r.name, r.description, r.createdat
		FROM iam.role r
		JOIN iam.accountrole ar ON ar.roleid = r.id
		WHERE ar.accountid = $1
		ORDER BY r.name`

	rows, err := repository.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_roles_for_user_failed: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_scan_failed: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_role_repo_rows_failed: %w", err)
	}

	return roles, nil
}

// PermissionsForUser returns the union of permissions granted through the
// user's roles. DISTINCT keeps the snapshot small when roles overlap.
func (repository *PostgresRoleRepository) PermissionsForUser(ctx context.Context, userID string) ([]rbac.Permission, error) {
	const query = `
		SELECT DISTINCT p.resource, p.action
		FROM iam.permission p
		JOIN iam.rolepermission rp ON rp.permissionid = p.id
		JOIN iam.accountrole ar ON ar.roleid = rp.roleid
		WHERE ar.accountid = $1
		ORDER BY p.resource, p.action`

	rows, err := repository.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_permissions_failed: %w", err)
	}
	defer rows.Close()

	permissions := []rbac.Permission{}
	for rows.Next() {
		var permission rbac.Permission
		if err := rows.Scan(&permission.Resource, &permission.Action); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_scan_failed: %w", err)
		}
		permissions = append(permissions, permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_role_repo_rows_failed: %w", err)
	}

	return permissions, nil
}

// Assign grants the role to the user. Re-assigning is a no-op.
func (repository *PostgresRoleRepository) Assign(ctx context.Context, userID, roleID string) error {
	const query = `
		INSERT INTO iam.accountrole (accountid, roleid, createdat)
		VALUES ($1, $2, $3)
		ON CONFLICT (accountid, roleid) DO NOTHING`

	_, err := repository.pool.Exec(ctx, query, userID, roleID, time.Now())
	if err != nil {
		return dberr.Wrap(err)
	}

	return nil
}

// Remove withdraws the role from the user. Removing an absent grant is a no-op.
func (repository *PostgresRoleRepository) Remove(ctx context.Context, userID, roleID string) error {
	const query = "DELETE FROM iam.accountrole WHERE accountid = $1 AND roleid = $2"
	_, err := repository.pool.Exec(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("postgres_role_repo_remove_failed: %w", err)
	}
	return nil
}

// ── Refresh Token Repository ─────────────────────────────────────────────────

// tokenColumns is the canonical scan order for iam.refreshtoken rows.
const tokenColumns = "id, accountid, tokenhash, familyid, parentid, useragent, ipaddress, expiresat, revokedat, createdat"

// PostgresTokenRepository implements the TokenRepository interface using pgx.
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new PostgreSQL implementation of TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

// Create persists the root token of a new session family.
func (repository *PostgresTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	const query = `
		INSERT INTO iam.refreshtoken (
			id, accountid, tokenhash, familyid, parentid, useragent, ipaddress, expiresat, createdat
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.FamilyID,
		token.ParentID,
		token.UserAgent,
		token.IPAddress,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_token_repo_create_failed: %w", err)
	}

	return nil
}

// FindByHash retrieves a token by its digest, regardless of revocation state.
func (repository *PostgresTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	const query = `
		SELECT ` + tokenColumns + `
		FROM iam.refreshtoken
		WHERE tokenhash = $1`

	token := &RefreshToken{}
	var parentID *string
	err := repository.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.FamilyID,
		&parentID,
		&token.UserAgent,
		&token.IPAddress,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Refresh token")
		}
		return nil, fmt.Errorf("postgres_token_repo_find_failed: %w", err)
	}

	if parentID != nil {
		token.ParentID = *parentID
	}

	return token, nil
}

// Rotate revokes the current token and inserts its successor atomically.
//
// # Concurrency
//
// The UPDATE carries a "revokedat IS NULL" guard. When two presentations of
// the same token race, exactly one transaction revokes the row; the loser
// sees zero affected rows and gets [ErrAlreadyRotated], which the service
// escalates to family revocation.
func (repository *PostgresTokenRepository) Rotate(ctx context.Context, currentID string, successor *RefreshToken) error {
	transaction, err := repository.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres_token_repo_rotate_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(ctx) }()

	const revokeQuery = `
		UPDATE iam.refreshtoken
		SET revokedat = $2
		WHERE id = $1 AND revokedat IS NULL`

	result, err := transaction.Exec(ctx, revokeQuery, currentID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_token_repo_rotate_revoke_failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyRotated
	}

	const insertQuery = `
		INSERT INTO iam.refreshtoken (
			id, accountid, tokenhash, familyid, parentid, useragent, ipaddress, expiresat, createdat
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`

	if successor.CreatedAt.IsZero() {
		successor.CreatedAt = time.Now()
	}

	_, err = transaction.Exec(ctx, insertQuery,
		successor.ID,
		successor.UserID,
		successor.TokenHash,
		successor.FamilyID,
		successor.ParentID,
		successor.UserAgent,
		successor.IPAddress,
		successor.ExpiresAt,
		successor.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_token_repo_rotate_insert_failed: %w", err)
	}

	if err := transaction.Commit(ctx); err != nil {
		return fmt.Errorf("postgres_token_repo_rotate_commit_failed: %w", err)
	}

	return nil
}

// RevokeFamily revokes every live token sharing the family ID.
func (repository *PostgresTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	const query = `
		UPDATE iam.refreshtoken
		SET revokedat = $2
		WHERE familyid = $1 AND revokedat IS NULL`

	_, err := repository.pool.Exec(ctx, query, familyID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_token_repo_revoke_family_failed: %w", err)
	}

	return nil
}

// RevokeAllForUser revokes every live token belonging to the user.
func (repository *PostgresTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	const query = `
		UPDATE iam.refreshtoken
		SET revokedat = $2
		WHERE accountid = $1 AND revokedat IS NULL`

	_, err := repository.pool.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_token_repo_revoke_all_failed: %w", err)
	}

	return nil
}

// DeleteExpired permanently removes tokens that expired before the cutoff.
func (repository *PostgresTokenRepository) DeleteExpired(ctx context.Context, before time.Time) error {
	const query = "DELETE FROM iam.refreshtoken WHERE expiresat <= $1"
	_, err := repository.pool.Exec(ctx, query, before)
	if err != nil {
		return fmt.Errorf("postgres_token_repo_delete_expired_failed: %w", err)
	}
	return nil
}
