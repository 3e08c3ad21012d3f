package constants

import "fmt"

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Role error templates
const (
	ErrOnlyAdminsCanAccess = "❌ Only admins may access %s."
	ErrOwnFilesOnly        = "❌ Students may only access their own %s."
)

func RoleErrorAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlyAdminsCanAccess, feature)
}

func RoleErrorOwnFiles(feature string) string {
	return fmt.Sprintf(ErrOwnFilesOnly, feature)
}

// ==========================
// ✅ Grouped Role Slices
// ==========================
var (
	AllRoles = []string{
		RoleAdmin,
		RoleStudent,
	}

	AdminOnly = []string{
		RoleAdmin,
	}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
