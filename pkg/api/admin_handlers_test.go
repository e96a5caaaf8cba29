package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) adminRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	admin := e.createUser(t, "admin-1", "boss@corp.com")
	require.Equal(t, auth.RoleAdmin, admin.Role)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.AddCookie(e.sessionFor(t, admin))
	return req
}

func TestAdminRequiresAdminRole(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user := env.createUser(t, "9", "ana@corp.com")
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(env.sessionFor(t, user))
	w = env.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, env.logs.String(), auth.ActionAccessDenied)
}

func TestAdminAPIKeyCannotReachAdmin(t *testing.T) {
	env := newTestEnv(t)
	record, err := env.keys.CreateAPIKey(t.Context(), "boss@corp.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+record.Key)
	w := env.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminListUsersAndSummary(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "1", "ana@corp.com")

	w := env.do(env.adminRequest(t, http.MethodGet, "/admin/users?limit=10", ""))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Users []*directory.User `json:"users"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Users, 2)

	w = env.do(env.adminRequest(t, http.MethodGet, "/admin/users?limit=zero", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(env.adminRequest(t, http.MethodGet, "/admin/users/summary", ""))
	require.Equal(t, http.StatusOK, w.Code)
	var summary directory.Summary
	decode(t, w, &summary)
	assert.Equal(t, 2, summary.TotalUsers)
	assert.Equal(t, 1, summary.AdminUsers)
}

func TestAdminSetRole(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "1", "ana@corp.com")

	w := env.do(env.adminRequest(t, http.MethodPut, "/admin/users/"+user.ID+"/role", `{"role":"admin"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated directory.User
	decode(t, w, &updated)
	assert.Equal(t, auth.RoleAdmin, updated.Role)

	w = env.do(env.adminRequest(t, http.MethodPut, "/admin/users/"+user.ID+"/role", `{"role":"root"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(env.adminRequest(t, http.MethodPut, "/admin/users/missing/role", `{"role":"user"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(env.adminRequest(t, http.MethodPost, "/admin/api-keys", `{"owner_email":"bot@corp.com"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var record auth.APIKeyRecord
	decode(t, w, &record)
	require.True(t, strings.HasPrefix(record.Key, "hg_"))
	assert.True(t, record.Active)

	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+record.Key)
	assert.Equal(t, http.StatusOK, env.do(me).Code)

	w = env.do(env.adminRequest(t, http.MethodPost, "/admin/api-keys/deactivate", `{"key":"`+record.Key+`"}`))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, env.logs.String(), record.Key)

	me = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+record.Key)
	assert.Equal(t, http.StatusUnauthorized, env.do(me).Code)

	w = env.do(env.adminRequest(t, http.MethodPost, "/admin/api-keys/deactivate", `{"key":"hg_unknown"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(env.adminRequest(t, http.MethodPost, "/admin/api-keys", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminAPIKeyRotationAndStatus(t *testing.T) {
	env := newTestEnv(t)

	issue := func() auth.APIKeyRecord {
		w := env.do(env.adminRequest(t, http.MethodPost, "/admin/api-keys", `{"owner_email":"ana@corp.com"}`))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var record auth.APIKeyRecord
		decode(t, w, &record)
		return record
	}
	meWith := func(key string) int {
		r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		r.Header.Set("Authorization", "Bearer "+key)
		return env.do(r).Code
	}

	first := issue()
	second := issue()
	assert.Equal(t, http.StatusUnauthorized, meWith(first.Key))
	assert.Equal(t, http.StatusOK, meWith(second.Key))

	w := env.do(env.adminRequest(t, http.MethodPut, "/admin/api-keys/status", `{"owner_email":"ana@corp.com","active":false}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status APIKeyStatusResponse
	decode(t, w, &status)
	assert.False(t, status.Active)
	assert.NotContains(t, w.Body.String(), second.Key)
	assert.Equal(t, http.StatusUnauthorized, meWith(second.Key))

	w = env.do(env.adminRequest(t, http.MethodPut, "/admin/api-keys/status", `{"owner_email":"ana@corp.com","active":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, meWith(second.Key))

	w = env.do(env.adminRequest(t, http.MethodPut, "/admin/api-keys/status", `{"owner_email":"nobody@corp.com","active":true}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(env.adminRequest(t, http.MethodPut, "/admin/api-keys/status", `{"owner_email":"ana@corp.com"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
