// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/finsight/internal/audit"
	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/metrics"
	"github.com/taibuivan/finsight/internal/platform/sec"
	"github.com/taibuivan/finsight/internal/rbac"
	"github.com/taibuivan/finsight/pkg/pagination"
	"github.com/taibuivan/finsight/pkg/uuid"
)

// Service implements the identity and session use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, credential
// verification, or token rotation logic must be reviewed by the security team.
type Service struct {
	userRepository  UserRepository
	roleRepository  RoleRepository
	tokenRepository TokenRepository
	tokens          *sec.TokenService
	policy          sec.PasswordPolicy
	trail           *audit.Logger
	refreshTTL      time.Duration

	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

// NewService constructs the IAM [Service] with its dependencies.
func NewService(
	userRepo UserRepository,
	roleRepo RoleRepository,
	tokenRepo TokenRepository,
	tokens *sec.TokenService,
	policy sec.PasswordPolicy,
	trail *audit.Logger,
	refreshTTL time.Duration,
) *Service {
	return &Service{
		userRepository:  userRepo,
		roleRepository:  roleRepo,
		tokenRepository: tokenRepo,
		tokens:          tokens,
		policy:          policy,
		trail:           trail,
		refreshTTL:      refreshTTL,
		now:             time.Now,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	UserAgent   string
	IPAddress   string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Enforces the password strength policy (reporting every violation
at once, not just the first), checks identity uniqueness, and assigns the
default read-only role so a fresh account can see its own data and nothing
else.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity with the default role hydrated
  - error: Validation, Conflict, or storage errors
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {

	// All policy violations are reported together so the client can fix the
	// password in one round trip.
	if violations := sec.CheckPasswordStrength(input.Password, service.policy); len(violations) > 0 {
		details := make([]apperr.FieldError, 0, len(violations))
		for _, violation := range violations {
			details = append(details, apperr.FieldError{Field: FieldPassword, Message: violation})
		}
		return nil, apperr.ValidationError("Password does not meet the strength policy", details...)
	}

	// Verify email uniqueness. Return a client-safe Conflict error.
	_, err := service.userRepository.FindByEmail(ctx, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Verify username uniqueness. Return a client-safe Conflict error.
	_, err = service.userRepository.FindByUsername(ctx, input.Username)
	if err == nil {
		return nil, apperr.Conflict("Username is already taken")
	}

	// Memory-hard digest. Parameters are pinned in the sec package so every
	// stored credential is equally expensive to attack.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("iam_service_hash_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		DisplayName:  input.DisplayName,
		IsActive:     true,
	}

	if err := service.userRepository.Create(ctx, user); err != nil {
		return nil, err
	}

	// Every account starts as a viewer. Broader access is an explicit admin
	// action, never a registration default.
	viewer, err := service.roleRepository.FindByName(ctx, rbac.RoleViewer)
	if err != nil {
		return nil, fmt.Errorf("iam_service_default_role_missing: %w", err)
	}
	if err := service.roleRepository.Assign(ctx, user.ID, viewer.ID); err != nil {
		return nil, fmt.Errorf("iam_service_default_role_assign_failed: %w", err)
	}
	user.Roles = []string{viewer.Name}

	service.trail.Record(ctx, audit.Entry{
		ActorID:    user.ID,
		Action:     audit.ActionUserRegistered,
		Resource:   rbac.ResourceUsers,
		ResourceID: user.ID,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	})

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login     string // Can be Username or Email
	Password  string
	UserAgent string
	IPAddress string
}

// Session represents a successfully established credential pair.
type Session struct {
	AccessToken           string
	AccessTokenExpiresIn  time.Duration
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *User
}

/*
Login validates user credentials and issues a fresh token pair.

Description: Verifies identity with a constant-time digest comparison, then
issues a short-lived access token and the root refresh token of a brand-new
session family. Unknown accounts and wrong passwords produce byte-identical
errors so the endpoint cannot be used for account enumeration.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Transport-ready credential pair
  - error: InvalidCredentials, Forbidden (deactivated), or internal failures
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {

	// Flexible login: look up by Email or Username.
	user, err := service.userRepository.FindByEmail(ctx, input.Login)
	if err != nil {
		user, err = service.userRepository.FindByUsername(ctx, input.Login)
	}

	if err != nil {
		service.recordLoginFailure(ctx, input, "unknown account")
		return nil, apperr.InvalidCredentials()
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		service.recordLoginFailure(ctx, input, "wrong password")
		return nil, apperr.InvalidCredentials()
	}

	// The password is verified before the active check so a deactivated owner
	// gets an honest answer while outsiders still only ever see 401.
	if !user.IsActive {
		service.recordLoginFailure(ctx, input, "account deactivated")
		return nil, apperr.Forbidden("Account is deactivated")
	}

	session, err := service.openSession(ctx, user, input.UserAgent, input.IPAddress)
	if err != nil {
		return nil, err
	}

	if err := service.userRepository.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	service.trail.Record(ctx, audit.Entry{
		ActorID:   user.ID,
		Action:    audit.ActionLoginSuccess,
		Resource:  rbac.ResourceUsers,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})

	return session, nil
}

// recordLoginFailure audits and counts one failed authentication attempt.
// The reason goes to the trail only; the client response never carries it.
func (service *Service) recordLoginFailure(ctx context.Context, input LoginInput, reason string) {
	metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
	service.trail.Record(ctx, audit.Entry{
		Action:    audit.ActionLoginFailed,
		Resource:  rbac.ResourceUsers,
		Outcome:   audit.OutcomeFailure,
		Details:   reason + " for login " + input.Login,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
}

// openSession issues the access token and the root refresh token of a new
// session family.
func (service *Service) openSession(ctx context.Context, user *User, userAgent, ipAddress string) (*Session, error) {
	roles, err := service.roleRepository.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("iam_service_roles_lookup_failed: %w", err)
	}
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}
	user.Roles = roleNames

	accessToken, err := service.tokens.IssueAccessToken(user.ID, user.Username, roleNames)
	if err != nil {
		return nil, fmt.Errorf("iam_service_access_token_failed: %w", err)
	}

	rawRefreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("iam_service_refresh_token_failed: %w", err)
	}

	// A root token is its own family: familyid = id, no parent.
	expiresAt := service.now().Add(service.refreshTTL)
	rootID := uuid.New()
	record := &RefreshToken{
		ID:        rootID,
		UserID:    user.ID,
		TokenHash: sec.HashToken(rawRefreshToken),
		FamilyID:  rootID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: expiresAt,
	}

	if err := service.tokenRepository.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("iam_service_session_creation_failed: %w", err)
	}

	return &Session{
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  service.tokens.AccessTokenTTL(),
		RefreshToken:          rawRefreshToken,
		RefreshTokenExpiresAt: expiresAt,
		User:                  user,
	}, nil
}

// # Session Rotation

/*
Refresh implements single-use refresh token rotation.

Description: A presented token is consumed exactly once. The successor keeps
the family lineage; presenting a link that was already consumed is treated as
credential theft and revokes every live token in the family before the caller
gets an answer.

Parameters:
  - context: context.Context
  - refreshToken: string (the raw opaque value)
  - userAgent: string
  - ipAddress: string

Returns:
  - *Session: Rotated credential pair
  - error: ReuseDetected, TokenExpired, TokenInvalid, Unauthorized, or storage failures
*/
func (service *Service) Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*Session, error) {
	record, err := service.tokenRepository.FindByHash(ctx, sec.HashToken(refreshToken))
	if err != nil {
		metrics.TokenRotations.WithLabelValues("invalid").Inc()
		return nil, apperr.TokenInvalid("Invalid refresh token")
	}

	// A revoked link presented again is the reuse signal. Family revocation
	// must complete before the error is returned.
	if record.RevokedAt != nil {
		return nil, service.handleReuse(ctx, record, userAgent, ipAddress)
	}

	if !record.ExpiresAt.After(service.now()) {
		metrics.TokenRotations.WithLabelValues("expired").Inc()
		return nil, apperr.TokenExpired()
	}

	user, err := service.userRepository.FindByID(ctx, record.UserID)
	if err != nil || !user.IsActive {
		metrics.TokenRotations.WithLabelValues("invalid").Inc()
		return nil, apperr.Unauthorized("User not found or deactivated")
	}

	// A changed device fingerprint is recorded, not rejected. Legitimate
	// networks roam; the trail lets operators correlate later.
	if record.UserAgent != userAgent || record.IPAddress != ipAddress {
		service.trail.Record(ctx, audit.Entry{
			ActorID:    user.ID,
			Action:     audit.ActionFingerprintChanged,
			Resource:   rbac.ResourceUsers,
			ResourceID: record.FamilyID,
			Details:    "session fingerprint changed during rotation",
			IPAddress:  ipAddress,
			UserAgent:  userAgent,
		})
	}

	rawSuccessor, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("iam_service_rotation_token_failed: %w", err)
	}

	successor := &RefreshToken{
		ID:        uuid.New(),
		UserID:    record.UserID,
		TokenHash: sec.HashToken(rawSuccessor),
		FamilyID:  record.FamilyID,
		ParentID:  record.ID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: service.now().Add(service.refreshTTL),
	}

	if err := service.tokenRepository.Rotate(ctx, record.ID, successor); err != nil {
		if errors.Is(err, ErrAlreadyRotated) {
			// Lost a race against a concurrent presentation of the same
			// token. Same theft signal, same response.
			return nil, service.handleReuse(ctx, record, userAgent, ipAddress)
		}
		return nil, err
	}

	roles, err := service.roleRepository.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("iam_service_roles_lookup_failed: %w", err)
	}
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}
	user.Roles = roleNames

	accessToken, err := service.tokens.IssueAccessToken(user.ID, user.Username, roleNames)
	if err != nil {
		return nil, fmt.Errorf("iam_service_access_token_failed: %w", err)
	}

	metrics.TokenRotations.WithLabelValues("rotated").Inc()
	service.trail.Record(ctx, audit.Entry{
		ActorID:    user.ID,
		Action:     audit.ActionTokenRotated,
		Resource:   rbac.ResourceUsers,
		ResourceID: record.FamilyID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	})

	return &Session{
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  service.tokens.AccessTokenTTL(),
		RefreshToken:          rawSuccessor,
		RefreshTokenExpiresAt: successor.ExpiresAt,
		User:                  user,
	}, nil
}

// handleReuse revokes the presented token's whole family and returns the
// reuse error. Revocation failures take precedence: returning ReuseDetected
// while the family is still live would leave the stolen chain usable.
func (service *Service) handleReuse(ctx context.Context, record *RefreshToken, userAgent, ipAddress string) error {
	if err := service.tokenRepository.RevokeFamily(ctx, record.FamilyID); err != nil {
		return fmt.Errorf("iam_service_family_revocation_failed: %w", err)
	}

	metrics.TokenRotations.WithLabelValues("reuse_detected").Inc()
	service.trail.Record(ctx, audit.Entry{
		ActorID:    record.UserID,
		Action:     audit.ActionTokenReuseDetected,
		Resource:   rbac.ResourceUsers,
		ResourceID: record.FamilyID,
		Outcome:    audit.OutcomeFailure,
		Details:    "revoked refresh token presented again; family revoked",
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	})

	return apperr.ReuseDetected()
}

/*
Logout revokes every live refresh token belonging to the user.

Description: Terminates all sessions across devices. Idempotent: logging out
twice is not an error.

Parameters:
  - context: context.Context
  - userID: string
  - userAgent: string
  - ipAddress: string

Returns:
  - error: Revocation failures
*/
func (service *Service) Logout(ctx context.Context, userID, userAgent, ipAddress string) error {
	if err := service.tokenRepository.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("iam_service_logout_failed: %w", err)
	}

	service.trail.Record(ctx, audit.Entry{
		ActorID:   userID,
		Action:    audit.ActionLogout,
		Resource:  rbac.ResourceUsers,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})

	return nil
}

// # Account Management

/*
ChangePassword rotates an authenticated user's credential.

Description: Verifies the current password, enforces the strength policy on
the replacement, and revokes every refresh token so any stolen session dies
with the old password.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - error: Unauthorized, ValidationError, or storage failures
*/
func (service *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	if violations := sec.CheckPasswordStrength(newPassword, service.policy); len(violations) > 0 {
		details := make([]apperr.FieldError, 0, len(violations))
		for _, violation := range violations {
			details = append(details, apperr.FieldError{Field: FieldNewPassword, Message: violation})
		}
		return apperr.ValidationError("Password does not meet the strength policy", details...)
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("iam_service_change_password_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		return err
	}

	// Security side effect: every session dies with the old password.
	if err := service.tokenRepository.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("iam_service_change_password_revoke_failed: %w", err)
	}

	service.trail.Record(ctx, audit.Entry{
		ActorID:  userID,
		Action:   audit.ActionPasswordChanged,
		Resource: rbac.ResourceUsers,
	})

	return nil
}

// Me returns the authenticated user's profile with roles hydrated.
func (service *Service) Me(ctx context.Context, userID string) (*User, error) {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	roles, err := service.roleRepository.RolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("iam_service_roles_lookup_failed: %w", err)
	}
	user.Roles = make([]string, 0, len(roles))
	for _, role := range roles {
		user.Roles = append(user.Roles, role.Name)
	}

	return user, nil
}

// UpdateProfileInput holds the mutable profile fields.
type UpdateProfileInput struct {
	DisplayName string
}

// UpdateProfile persists profile changes for the authenticated user.
func (service *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*User, error) {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.DisplayName = input.DisplayName
	if err := service.userRepository.Update(ctx, user); err != nil {
		return nil, err
	}

	service.trail.Record(ctx, audit.Entry{
		ActorID:    userID,
		Action:     audit.ActionProfileUpdated,
		Resource:   rbac.ResourceUsers,
		ResourceID: userID,
	})

	return user, nil
}

// # Authorization Snapshots

/*
Snapshot resolves the user's effective authorization state.

Description: Hydrates role names and the deduplicated permission union into
an immutable view the RBAC engine evaluates against. Deactivated accounts
resolve to nothing, which the deny-by-default engine turns into a denial.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *rbac.Snapshot: Immutable authorization view
  - error: Retrieval failures
*/
func (service *Service) Snapshot(ctx context.Context, userID string) (*rbac.Snapshot, error) {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.Unauthorized("Account no longer exists")
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("Account is deactivated")
	}

	roles, err := service.roleRepository.RolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("iam_service_snapshot_roles_failed: %w", err)
	}

	permissions, err := service.roleRepository.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("iam_service_snapshot_permissions_failed: %w", err)
	}

	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	return &rbac.Snapshot{
		UserID:      userID,
		Roles:       roleNames,
		Permissions: permissions,
	}, nil
}

// # Administrative Operations

// ListUsers returns a page of accounts with their roles hydrated. The search
// term filters on username and email when non-empty.
func (service *Service) ListUsers(ctx context.Context, search string, params pagination.Params) ([]User, int, error) {
	users, total, err := service.userRepository.List(ctx, search, params)
	if err != nil {
		return nil, 0, err
	}

	for index := range users {
		roles, err := service.roleRepository.RolesForUser(ctx, users[index].ID)
		if err != nil {
			return nil, 0, fmt.Errorf("iam_service_roles_lookup_failed: %w", err)
		}
		names := make([]string, 0, len(roles))
		for _, role := range roles {
			names = append(names, role.Name)
		}
		users[index].Roles = names
	}

	return users, total, nil
}

// ListRoles returns every defined role.
func (service *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return service.roleRepository.List(ctx)
}

// AssignRole grants a named role to a user on behalf of an administrator.
func (service *Service) AssignRole(ctx context.Context, actorID, userID, roleName string) error {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	role, err := service.roleRepository.FindByName(ctx, roleName)
	if err != nil {
		return err
	}

	if err := service.roleRepository.Assign(ctx, user.ID, role.ID); err != nil {
		return err
	}

	service.trail.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionRoleAssigned,
		Resource:   rbac.ResourceRoles,
		ResourceID: user.ID,
		Details:    "assigned role " + role.Name,
	})

	return nil
}

// RemoveRole withdraws a named role from a user on behalf of an administrator.
func (service *Service) RemoveRole(ctx context.Context, actorID, userID, roleName string) error {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	role, err := service.roleRepository.FindByName(ctx, roleName)
	if err != nil {
		return err
	}

	if err := service.roleRepository.Remove(ctx, user.ID, role.ID); err != nil {
		return err
	}

	service.trail.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionRoleRemoved,
		Resource:   rbac.ResourceRoles,
		ResourceID: user.ID,
		Details:    "removed role " + role.Name,
	})

	return nil
}

// SetUserActive toggles an account and, when deactivating, kills its sessions.
func (service *Service) SetUserActive(ctx context.Context, actorID, userID string, active bool) error {
	if err := service.userRepository.SetActive(ctx, userID, active); err != nil {
		return err
	}

	details := "account activated"
	if !active {
		details = "account deactivated"
		// A deactivated account must not keep refreshing its way back in.
		if err := service.tokenRepository.RevokeAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("iam_service_deactivate_revoke_failed: %w", err)
		}
	}

	service.trail.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionAccountToggled,
		Resource:   rbac.ResourceUsers,
		ResourceID: userID,
		Details:    details,
	})

	return nil
}

// PurgeExpired physically deletes refresh tokens that have been expired for
// longer than the grace window. Rows inside the window are already unusable
// but stay queryable for incident forensics.
func (service *Service) PurgeExpired(ctx context.Context, grace time.Duration) error {
	return service.tokenRepository.DeleteExpired(ctx, service.now().Add(-grace))
}

/*
BootstrapAdmin ensures the configured administrator account exists.

Description: Called once at startup. When the account already exists this is
a no-op apart from re-asserting the admin role grant; otherwise the account
is created with the configured credentials. The bootstrap password is subject
to the same strength policy as any registration.

Parameters:
  - context: context.Context
  - username: string
  - email: string
  - password: string

Returns:
  - error: Validation or storage failures
*/
func (service *Service) BootstrapAdmin(ctx context.Context, username, email, password string) error {
	adminRole, err := service.roleRepository.FindByName(ctx, rbac.RoleAdmin)
	if err != nil {
		return fmt.Errorf("iam_service_bootstrap_role_missing: %w", err)
	}

	existing, err := service.userRepository.FindByUsername(ctx, username)
	if err == nil {
		// Idempotent restart: keep the grant in place, touch nothing else.
		return service.roleRepository.Assign(ctx, existing.ID, adminRole.ID)
	}

	if violations := sec.CheckPasswordStrength(password, service.policy); len(violations) > 0 {
		details := make([]apperr.FieldError, 0, len(violations))
		for _, violation := range violations {
			details = append(details, apperr.FieldError{Field: FieldPassword, Message: violation})
		}
		return apperr.ValidationError("Bootstrap admin password does not meet the strength policy", details...)
	}

	hashedPassword, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("iam_service_bootstrap_hash_failed: %w", err)
	}

	admin := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		DisplayName:  "Administrator",
		IsActive:     true,
	}

	if err := service.userRepository.Create(ctx, admin); err != nil {
		return err
	}
	if err := service.roleRepository.Assign(ctx, admin.ID, adminRole.ID); err != nil {
		return fmt.Errorf("iam_service_bootstrap_grant_failed: %w", err)
	}

	service.trail.Record(ctx, audit.Entry{
		Action:     audit.ActionUserRegistered,
		Resource:   rbac.ResourceUsers,
		ResourceID: admin.ID,
		Details:    "bootstrap administrator created",
	})

	return nil
}
