// file: internals/features/students/students/route/student_routes.go
package route

import (
	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/students/students/controller"
	authMiddleware "srms_backend/internals/middlewares/auth"
)

func StudentRoutes(router fiber.Router, sc *controller.StudentController, protect fiber.Handler) {
	adminOnly := authMiddleware.OnlyRoles(constants.RoleErrorAdmin("student management"), constants.AdminOnly...)
	selfOrAdmin := authMiddleware.OnlySelfOrAdmin("studentId", constants.RoleErrorOwnFiles("records"))

	students := router.Group("/students")
	students.Post("/", protect, adminOnly, sc.Create)
	students.Get("/", protect, adminOnly, sc.List)
	students.Get("/:studentId", protect, selfOrAdmin, sc.Get)
	students.Delete("/:studentId", protect, adminOnly, sc.Delete)
}
