// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
HTTP delivery layer for the public authentication surface.

# Architecture

The handler acts as a thin mediation layer between the web and the domain
service:

  - Protocol: Standard RESTful JSON interface.
  - Security: JWT orchestration and refresh token cookie injection.
  - Verification: Strict input validation before anything reaches [Service].

This layer is strictly responsible for transport concerns (status codes,
headers, JSON).
*/
package iam

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/finsight/internal/gateway"
	"github.com/taibuivan/finsight/internal/platform/apperr"
	"github.com/taibuivan/finsight/internal/platform/constants"
	"github.com/taibuivan/finsight/internal/platform/middleware"
	requestutil "github.com/taibuivan/finsight/internal/platform/request"
	"github.com/taibuivan/finsight/internal/platform/respond"
	"github.com/taibuivan/finsight/internal/platform/validate"
	"github.com/taibuivan/finsight/internal/ratelimit"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	service *Service
	gate    *gateway.Gateway

	// Throttle classes for the abuse-prone entry points.
	loginClass    ratelimit.Class
	registerClass ratelimit.Class
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, gate *gateway.Gateway, loginClass, registerClass ratelimit.Class) *Handler {
	return &Handler{
		service:       service,
		gate:          gate,
		loginClass:    loginClass,
		registerClass: registerClass,
	}
}

// Routes returns a [chi.Router] configured with the authentication surface.
//
// # Endpoints
//   - POST /register        : Creates a new account (throttled per IP).
//   - POST /login           : Authenticates (throttled per IP+username).
//   - POST /refresh         : Rotates the refresh token.
//   - POST /logout          : Revokes all sessions (authenticated).
//   - POST /change-password : Rotates the credential (authenticated).
//   - GET  /me              : Returns the caller's profile (authenticated).
//   - PATCH /me             : Updates the caller's profile (authenticated).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.With(handler.gate.Throttle(handler.registerClass)).Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Post("/change-password", handler.changePassword)
		r.Get("/me", handler.me)
		r.Patch("/me", handler.updateProfile)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Description: Validates input, enforces the password policy, checks for
identity conflicts, and persists a new account with the default role.

Request:
  - Body: registerRequest (Username, Email, Password, DisplayName)

Response:
  - 201: User: Created profile
  - 400: ErrInvalidJSON: Bad input or policy violation
  - 409: ErrConflict: Username or Email already exists
  - 429: RateLimited: Registration budget exhausted for this address
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, input.Username, UsernameMinLength).
		MaxLen(FieldUsername, input.Username, UsernameMaxLength).
		Username(FieldUsername, input.Username).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MaxLen(FieldDisplayName, input.DisplayName, DisplayNameMaxLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Register(request.Context(), RegisterInput{
		Username:    input.Username,
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
		UserAgent:   request.UserAgent(),
		IPAddress:   middleware.RealIP(request),
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials, generates the access token, and injects a
secure refresh token cookie into the response. Throttled per IP+username
pair, so a distributed guess against one account burns a single budget while
unrelated users on the same network are untouched.

Request:
  - Body: loginRequest (Login, Password)

Response:
  - 200: Session: Access token and user profile
  - 401: InvalidCredentials: Unknown account or wrong password
  - 429: RateLimited: Attempt budget exhausted
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldLogin, input.Login)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// The throttle key pairs the source address with the claimed identity.
	// Checked before credential verification so guessing is expensive even
	// when every attempt fails fast.
	throttleKey := middleware.RealIP(request) + ":" + input.Login
	if err := handler.gate.Check(request.Context(), handler.loginClass, throttleKey); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.service.Login(request.Context(), LoginInput{
		Login:     input.Login,
		Password:  input.Password,
		UserAgent: request.UserAgent(),
		IPAddress: middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session)

	// The refresh token travels in the body as well as the cookie so
	// non-browser clients can rotate without a cookie jar.
	respond.OK(writer, map[string]any{
		FieldAccessToken:  session.AccessToken,
		FieldRefreshToken: session.RefreshToken,
		FieldTokenType:    "Bearer",
		FieldExpiresIn:    int(session.AccessTokenExpiresIn / time.Second),
		FieldUser:         session.User,
	})
}

/*
Refresh rotates the session's refresh token.

POST /api/v1/auth/refresh

Description: Consumes the presented refresh token exactly once and answers
with a fresh access token plus the successor refresh token. The token is read
from the session cookie; non-browser clients may send it in the JSON body
instead.

Response:
  - 200: Session: New credential pair
  - 401: ReuseDetected / TokenExpired / Unauthorized
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken := ""
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var input refreshRequest
		if err := requestutil.DecodeJSON(request, &input); err == nil {
			refreshToken = input.RefreshToken
		}
	}
	if refreshToken == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	session, err := handler.service.Refresh(
		request.Context(),
		refreshToken,
		request.UserAgent(),
		middleware.RealIP(request),
	)

	if err != nil {
		// Reuse detection killed the whole family; the cookie is worthless
		// now, so clear it rather than let the client keep retrying it.
		if apperr.IsCode(err, "REUSE_DETECTED") {
			handler.clearRefreshCookie(writer)
		}
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session)

	respond.OK(writer, map[string]any{
		FieldAccessToken:  session.AccessToken,
		FieldRefreshToken: session.RefreshToken,
		FieldTokenType:    "Bearer",
		FieldExpiresIn:    int(session.AccessTokenExpiresIn / time.Second),
	})
}

/*
Logout terminates every session of the authenticated user.

POST /api/v1/auth/logout

Description: Revokes all refresh tokens across devices and clears the
security cookie from the client.

Response:
  - 204: No Content: Sessions terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Logout(request.Context(), userID, request.UserAgent(), middleware.RealIP(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

/*
ChangePassword updates the authenticated user's password.

POST /api/v1/auth/change-password

Description: Verifies the current password, applies the strength policy, and
revokes every live session so the new credential is the only way back in.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success: Password changed
  - 400: ValidationError: Policy violation
  - 401: Unauthorized: Wrong current password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearRefreshCookie(writer)
	respond.OK(writer, map[string]string{
		FieldMessage: "Password changed successfully",
	})
}

/*
Me returns the authenticated user's profile.

GET /api/v1/auth/me

Response:
  - 200: User: Profile with roles
  - 401: Unauthorized: Authentication required
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Me(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
UpdateProfile updates the authenticated user's mutable profile fields.

PATCH /api/v1/auth/me

Request:
  - Body: updateProfileRequest (DisplayName)

Response:
  - 200: User: Updated profile
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateProfileRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.MaxLen(FieldDisplayName, input.DisplayName, DisplayNameMaxLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Cookie Helpers

// setRefreshCookie installs the session cookie scoped to the auth endpoints.
func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, session *Session) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    session.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  session.RefreshTokenExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie removes the session cookie from the client.
func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
