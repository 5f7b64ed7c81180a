// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/finsight/internal/platform/respond"
	"github.com/taibuivan/finsight/pkg/pagination"
)

// Handler exposes the audit trail to administrators.
//
// Authorization is applied by the server wiring (audit_logs read), not here;
// the handler only deals with transport.
type Handler struct {
	trail *Logger
}

// NewHandler constructs the audit [Handler].
func NewHandler(trail *Logger) *Handler {
	return &Handler{trail: trail}
}

// Routes returns the audit trail router.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.list)
	return router
}

/*
List returns audit entries, newest first.

GET /api/v1/audit

Description: Supports filtering by actor_id and action via query parameters,
plus standard page/limit pagination.

Response:
  - 200: []Entry: Paginated trail entries
  - 403: Forbidden: Missing audit_logs read grant
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)
	filter := Filter{
		ActorID: request.URL.Query().Get("actor_id"),
		Action:  request.URL.Query().Get("action"),
	}

	entries, total, err := handler.trail.List(request.Context(), filter, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, entries, pagination.NewMeta(params.Page, params.Limit, total))
}
