package auth

import (
	"github.com/gofiber/fiber/v2"

	helper "srms_backend/internals/helpers"
)

// RoleMiddlewareWithCustomError lets the request through when userRole is one
// of allowedRoles.
func RoleMiddlewareWithCustomError(allowedRoles []string, customForbiddenMessage string) fiber.Handler {
	if customForbiddenMessage == "" {
		customForbiddenMessage = "forbidden: you are not authorized to access this resource"
	}
	return func(c *fiber.Ctx) error {
		role := helper.GetRole(c)
		if role == "" {
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized: missing role information")
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				return c.Next()
			}
		}
		return helper.JsonError(c, fiber.StatusForbidden, customForbiddenMessage)
	}
}

func OnlyRoles(customMessage string, roles ...string) fiber.Handler {
	return RoleMiddlewareWithCustomError(roles, customMessage)
}

// OnlySelfOrAdmin allows admins, and students whose student_id equals the
// :param path parameter.
func OnlySelfOrAdmin(param, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if helper.IsAdmin(c) {
			return c.Next()
		}
		if sid := helper.GetStudentID(c); sid != "" && sid == c.Params(param) {
			return c.Next()
		}
		return helper.JsonError(c, fiber.StatusForbidden, message)
	}
}
