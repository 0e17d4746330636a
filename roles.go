package identity

// Role is the account's role
type Role = string

const (
	// RoleStudent is the default self-service role
	RoleStudent Role = "student"
	// RoleTeacher can manage course content for their own cohorts
	RoleTeacher Role = "teacher"
	// RoleAdmin can manage accounts, roles, and statuses
	RoleAdmin Role = "admin"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleIsAtLeast checks if the role meets the minimum required level
func RoleIsAtLeast(r, minRole Role) bool {
	roleHierarchy := map[Role]int{
		RoleStudent: 0,
		RoleTeacher: 1,
		RoleAdmin:   2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// RoleIn reports whether r is one of the allowed roles.
func RoleIn(r Role, allowed ...Role) bool {
	for _, candidate := range allowed {
		if r == candidate {
			return true
		}
	}
	return false
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []Role {
	return []Role{
		RoleStudent,
		RoleTeacher,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}
