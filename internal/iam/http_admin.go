// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package iam

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/finsight/internal/gateway"
	requestutil "github.com/taibuivan/finsight/internal/platform/request"
	"github.com/taibuivan/finsight/internal/platform/respond"
	"github.com/taibuivan/finsight/internal/platform/validate"
	"github.com/taibuivan/finsight/internal/rbac"
	"github.com/taibuivan/finsight/pkg/pagination"
)

// AdminHandler implements the user and role administration endpoints.
//
// # Authorization
//
// Every route is wrapped by the gateway. Listing requires a read grant on the
// users resource; anything that changes grants requires manage on roles,
// which only administrators hold.
type AdminHandler struct {
	service *Service
	gate    *gateway.Gateway
}

// NewAdminHandler constructs a new [AdminHandler].
func NewAdminHandler(service *Service, gate *gateway.Gateway) *AdminHandler {
	return &AdminHandler{service: service, gate: gate}
}

// UserRoutes returns the /users administration router.
func (handler *AdminHandler) UserRoutes() chi.Router {
	router := chi.NewRouter()

	router.With(handler.gate.Protect(rbac.ResourceUsers, rbac.ActionRead)).
		Get("/", handler.listUsers)
	router.With(handler.gate.Protect(rbac.ResourceUsers, rbac.ActionRead)).
		Get("/{userID}", handler.getUser)
	router.With(handler.gate.Protect(rbac.ResourceUsers, rbac.ActionManage)).
		Put("/{userID}/status", handler.setUserStatus)
	router.With(handler.gate.Protect(rbac.ResourceRoles, rbac.ActionManage)).
		Post("/{userID}/roles", handler.assignRole)
	router.With(handler.gate.Protect(rbac.ResourceRoles, rbac.ActionManage)).
		Delete("/{userID}/roles/{roleName}", handler.removeRole)

	return router
}

// RoleRoutes returns the /roles administration router.
func (handler *AdminHandler) RoleRoutes() chi.Router {
	router := chi.NewRouter()

	router.With(handler.gate.Protect(rbac.ResourceRoles, rbac.ActionRead)).
		Get("/", handler.listRoles)

	return router
}

// # Request Payloads

type assignRoleRequest struct {
	Role string `json:"role"`
}

type setStatusRequest struct {
	IsActive bool `json:"is_active"`
}

/*
ListUsers returns a page of accounts with their roles.

GET /api/v1/users

Description: The optional search query parameter filters on username and
email, case-insensitively.

Response:
  - 200: []User: Paginated accounts
  - 403: Forbidden: Missing users read grant
*/
func (handler *AdminHandler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)
	search := request.URL.Query().Get("search")

	users, total, err := handler.service.ListUsers(request.Context(), search, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
GetUser returns a single account profile.

GET /api/v1/users/{userID}

Description: Callers holding a manage grant on users may read anyone; callers
with only a read grant are restricted to their own record.

Response:
  - 200: User: Account profile
  - 403: Forbidden: Reading someone else without a manage grant
  - 404: NotFound: Unknown account
*/
func (handler *AdminHandler) getUser(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "userID")

	validator := &validate.Validator{}
	validator.UUID("userID", userID)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Me(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.gate.RequireOwned(request.Context(), request, rbac.ResourceUsers, rbac.ActionRead, user.ID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
SetUserStatus activates or deactivates an account.

PUT /api/v1/users/{userID}/status

Description: Deactivation also revokes every live session, so the account
cannot refresh its way back in.

Request:
  - Body: setStatusRequest (IsActive)

Response:
  - 200: Success: Status updated
  - 403: Forbidden: Missing users manage grant
*/
func (handler *AdminHandler) setUserStatus(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID := requestutil.Param(request, "userID")

	var input setStatusRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.service.SetUserActive(request.Context(), actorID, userID, input.IsActive); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "User status updated",
	})
}

/*
AssignRole grants a named role to an account.

POST /api/v1/users/{userID}/roles

Request:
  - Body: assignRoleRequest (Role)

Response:
  - 200: Success: Role assigned
  - 403: Forbidden: Missing roles manage grant
  - 404: NotFound: Unknown account or role
*/
func (handler *AdminHandler) assignRole(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID := requestutil.Param(request, "userID")

	var input assignRoleRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldRole, input.Role).
		OneOf(FieldRole, input.Role, rbac.RoleAdmin, rbac.RoleAnalyst, rbac.RoleViewer)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.AssignRole(request.Context(), actorID, userID, input.Role); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Role assigned",
	})
}

/*
RemoveRole withdraws a named role from an account.

DELETE /api/v1/users/{userID}/roles/{roleName}

Response:
  - 200: Success: Role removed
  - 403: Forbidden: Missing roles manage grant
  - 404: NotFound: Unknown account or role
*/
func (handler *AdminHandler) removeRole(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID := requestutil.Param(request, "userID")
	roleName := requestutil.Param(request, "roleName")

	if err := handler.service.RemoveRole(request.Context(), actorID, userID, roleName); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Role removed",
	})
}

/*
ListRoles returns every defined role.

GET /api/v1/roles

Response:
  - 200: []Role: All roles
  - 403: Forbidden: Missing roles read grant
*/
func (handler *AdminHandler) listRoles(writer http.ResponseWriter, request *http.Request) {
	roles, err := handler.service.ListRoles(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, roles)
}
