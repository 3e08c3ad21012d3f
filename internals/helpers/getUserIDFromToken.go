package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/constants"
)

// Locals written by the JWT middleware.
const (
	LocUserID    = "user_id"
	LocRole      = "userRole"
	LocStudentID = "student_id"
)

// GetUserIDFromToken returns the authenticated account id, or 401.
func GetUserIDFromToken(c *fiber.Ctx) (string, error) {
	s := localString(c, LocUserID)
	if s == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "not logged in")
	}
	return s, nil
}

func GetRole(c *fiber.Ctx) string {
	return strings.ToLower(localString(c, LocRole))
}

// GetStudentID is empty for admins.
func GetStudentID(c *fiber.Ctx) string {
	return localString(c, LocStudentID)
}

func IsAdmin(c *fiber.Ctx) bool {
	return GetRole(c) == constants.RoleAdmin
}

func localString(c *fiber.Ctx, key string) string {
	switch v := c.Locals(key).(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

type stringer interface{ String() string }
