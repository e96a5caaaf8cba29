package auth

import (
	"net/http"

	"github.com/platinummonkey/homegate/pkg/httputil"
	"github.com/platinummonkey/homegate/pkg/observability"
)

// AuditEvent is a security-relevant authentication event
type AuditEvent struct {
	Action   string
	Provider string
	Email    string
	Method   AuthMethod
	Status   string
	Err      error
}

// AuditLogger writes authentication events as structured log entries
type AuditLogger struct {
	logger *observability.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogFromRequest records ev with the request's client address and user agent
func (al *AuditLogger) LogFromRequest(r *http.Request, ev AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	fields := map[string]interface{}{
		"audit":      true,
		"action":     ev.Action,
		"status":     ev.Status,
		"ip_address": httputil.ClientIP(r),
		"user_agent": r.UserAgent(),
	}
	if ev.Provider != "" {
		fields["provider"] = ev.Provider
	}
	if ev.Email != "" {
		fields["email"] = ev.Email
	}
	if ev.Method != "" {
		fields["auth_method"] = string(ev.Method)
	}

	logger := al.logger.WithFields(fields).WithError(ev.Err)
	if ev.Status == StatusSuccess {
		logger.Info("auth event")
		return
	}
	logger.Warn("auth event")
}

// Audit actions
const (
	ActionLogin         = "auth.login"
	ActionCallback      = "auth.callback"
	ActionHeaderLogin   = "auth.header_login"
	ActionLogout        = "auth.logout"
	ActionAccessDenied  = "auth.access_denied"
	ActionRoleChange    = "user.role_change"
	ActionAPIKeyCreate  = "api_key.create"
	ActionAPIKeyDisable = "api_key.deactivate"
	ActionAPIKeyEnable  = "api_key.activate"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
