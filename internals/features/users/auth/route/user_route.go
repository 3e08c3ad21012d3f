// file: internals/features/users/auth/route/user_route.go
package route

import (
	"github.com/gofiber/fiber/v2"

	controller "srms_backend/internals/features/users/auth/controller"
	"srms_backend/internals/features/users/auth/service"
	rateLimiter "srms_backend/internals/middlewares"
)

// AuthRoutes mounts /api/auth. protect is the JWT middleware.
func AuthRoutes(router fiber.Router, auth *service.AuthService, protect fiber.Handler) {
	authController := controller.NewAuthController(auth)

	baseAuth := router.Group("/auth")
	baseAuth.Post("/login", rateLimiter.LoginRateLimiter(), authController.Login)

	protected := baseAuth.Group("", protect)
	protected.Post("/logout", authController.Logout)
	protected.Get("/me", authController.Me)
}
