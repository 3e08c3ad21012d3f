package details

import (
	"github.com/gofiber/fiber/v2"

	authRoute "srms_backend/internals/features/users/auth/route"
	authService "srms_backend/internals/features/users/auth/service"
)

func AuthRoutes(api fiber.Router, auth *authService.AuthService, protect fiber.Handler) {
	authRoute.AuthRoutes(api, auth, protect)
}
