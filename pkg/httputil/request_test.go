package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"ipv4 with port", "10.0.0.5:43122", "", "10.0.0.5"},
		{"ipv6 with port", "[::1]:8080", "", "::1"},
		{"no port", "127.0.0.1", "", "127.0.0.1"},
		{"forwarded header ignored", "10.0.0.5:1234", "127.0.0.1", "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"Bearer   padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, BearerToken(req))
		})
	}
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/login/github", nil)
	req = mux.SetURLVars(req, map[string]string{"provider": "github"})

	val, err := ParsePathString(req, "provider")
	assert.NoError(t, err)
	assert.Equal(t, "github", val)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)
}

func TestWriteErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteForbidden(w, "admin role required")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"admin role required"}`, w.Body.String())
}
