// Package rbac maps roles to permission sets. It is a pure mapping with no
// I/O: role changes take effect for existing sessions on their next refresh
// rotation, since access tokens already issued keep their embedded
// permission set until expiry.
package rbac

import "github.com/MushhX/RavixPteroX/internal/models"

// Wildcard satisfies every permission check; only admins hold it.
const Wildcard = "*"

// Permissions understood by the dashboard.
const (
	PermPanelRead  = "ptero:read"
	PermPanelPower = "ptero:power"
	PermAdminUsers = "admin:users"
	PermAdminAudit = "admin:audit"
)

var rolePerms = map[models.UserRole][]string{
	models.UserRoleAdmin: {Wildcard},
	models.UserRoleUser:  {PermPanelRead, PermPanelPower},
}

// Resolve returns the permission set granted to role. Unknown roles resolve
// to an empty set, never to an error.
func Resolve(role models.UserRole) []string {
	perms, ok := rolePerms[role]
	if !ok {
		return []string{}
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPerm reports whether granted contains required, either verbatim or via
// the wildcard.
func HasPerm(granted []string, required string) bool {
	for _, p := range granted {
		if p == Wildcard || p == required {
			return true
		}
	}
	return false
}

// ParseRole normalizes a stored role string, defaulting to the least
// privileged role on anything unrecognized.
func ParseRole(s string) models.UserRole {
	if s == string(models.UserRoleAdmin) {
		return models.UserRoleAdmin
	}
	return models.UserRoleUser
}
