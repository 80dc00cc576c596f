package models

// Role is the audience tier a plan is written for. Pools are role-specific;
// the explorer pool doubles as the shared fallback source on retrieval.
type Role string

const (
	RoleExplorer  Role = "explorer" // default / fallback pool
	RoleCadet     Role = "cadet"
	RoleNavigator Role = "navigator"
	RoleCommander Role = "commander"
)

// DefaultRole is the shared fallback pool every retrieval may draw from.
const DefaultRole = RoleExplorer

// AllRoles lists every audience tier in maintenance sweep order.
func AllRoles() []Role {
	return []Role{RoleExplorer, RoleCadet, RoleNavigator, RoleCommander}
}

// Valid reports whether r is a known audience tier.
func (r Role) Valid() bool {
	switch r {
	case RoleExplorer, RoleCadet, RoleNavigator, RoleCommander:
		return true
	}
	return false
}
