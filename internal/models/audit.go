package models

import "time"

type AuditEvent struct {
	ID          string
	ActorUserID string
	Action      string
	Target      string
	Meta        map[string]any
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}

// Audit action names recorded by the auth core.
const (
	AuditLogin           = "auth.login"
	AuditRefresh         = "auth.refresh"
	AuditLogout          = "auth.logout"
	AuditSessionReuse    = "auth.session.reuse_revoked"
	AuditSessionRevoked  = "auth.session.revoked"
	AuditAdminUserCreate = "admin.user.create"
	AuditAdminUserUpdate = "admin.user.update"
	AuditAdminRevokeAll  = "admin.user.revoke_sessions"
	AuditAdminAuditList  = "admin.audit.list"
	AuditPanelPower      = "panel.server.power"
)
