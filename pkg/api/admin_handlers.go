package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/directory"
	"github.com/platinummonkey/homegate/pkg/httputil"
	"github.com/platinummonkey/homegate/pkg/middleware"
	"github.com/platinummonkey/homegate/pkg/observability"
)

// listUsers handles GET /admin/users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteValidationError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	users, err := s.cfg.Users.List(r.Context(), limit)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to list users")
		httputil.WriteInternalError(w)
		return
	}
	if users == nil {
		users = []*directory.User{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": users})
}

// userSummary handles GET /admin/users/summary
func (s *Server) userSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.cfg.Users.Summary(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to summarize users")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// setUserRole handles PUT /admin/users/{id}/role
func (s *Server) setUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req SetRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "role must be admin or user")
		return
	}

	err := s.cfg.Users.SetRole(r.Context(), id, req.Role)
	if errors.Is(err, directory.ErrUserNotFound) {
		httputil.WriteNotFound(w, "user not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to set role")
		httputil.WriteInternalError(w)
		return
	}

	user, err := s.cfg.Users.Get(r.Context(), id)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to reload user")
		httputil.WriteInternalError(w)
		return
	}
	s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
		Action: auth.ActionRoleChange, Email: user.Email, Status: auth.StatusSuccess,
	})
	httputil.WriteSuccess(w, user)
}

// createAPIKey handles POST /admin/api-keys. The key is only ever returned
// in this response; any previous key for the owner is replaced.
func (s *Server) createAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.OwnerEmail, "owner_email") {
		return
	}

	record, err := s.cfg.APIKeys.CreateAPIKey(r.Context(), req.OwnerEmail)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to create api key")
		httputil.WriteInternalError(w)
		return
	}

	s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
		Action: auth.ActionAPIKeyCreate, Email: record.OwnerEmail, Status: auth.StatusSuccess,
	})
	httputil.WriteCreated(w, record)
}

// deactivateAPIKey handles POST /admin/api-keys/deactivate. The key travels
// in the body so it never shows up in request logs.
func (s *Server) deactivateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req DeactivateAPIKeyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Key, "key") {
		return
	}
	key := req.Key

	err := s.cfg.APIKeys.DeactivateAPIKey(r.Context(), key)
	if errors.Is(err, auth.ErrAPIKeyNotFound) {
		httputil.WriteNotFound(w, "api key not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to deactivate api key")
		httputil.WriteInternalError(w)
		return
	}

	ev := auth.AuditEvent{Action: auth.ActionAPIKeyDisable, Status: auth.StatusSuccess}
	if p := middleware.GetPrincipal(r); p != nil {
		ev.Email = p.Email
	}
	s.cfg.Audit.LogFromRequest(r, ev)
	observability.FromContext(r.Context()).
		WithField("api_key", auth.RedactAPIKey(key)).
		Info("api key deactivated")
	httputil.WriteNoContent(w)
}

// setAPIKeyStatus handles PUT /admin/api-keys/status
func (s *Server) setAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	var req APIKeyStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.OwnerEmail, "owner_email") {
		return
	}
	if req.Active == nil {
		httputil.WriteValidationError(w, "active is required")
		return
	}

	err := s.cfg.APIKeys.SetAPIKeyStatus(r.Context(), req.OwnerEmail, *req.Active)
	if errors.Is(err, auth.ErrAPIKeyNotFound) {
		httputil.WriteNotFound(w, "api key not found")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to update api key status")
		httputil.WriteInternalError(w)
		return
	}

	action := auth.ActionAPIKeyDisable
	if *req.Active {
		action = auth.ActionAPIKeyEnable
	}
	s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
		Action: action, Email: req.OwnerEmail, Status: auth.StatusSuccess,
	})
	httputil.WriteSuccess(w, APIKeyStatusResponse{OwnerEmail: req.OwnerEmail, Active: *req.Active})
}
