package auth

// IsValidRole checks if the role is one of the known user types
func IsValidRole(role string) bool {
	switch role {
	case RolePatient, RoleAdmin:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all user types
func GetAllRoles() []UserRole {
	return []UserRole{
		RolePatient,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
