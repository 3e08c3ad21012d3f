// internals/middlewares/auth/auth_middleware.go
package auth

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/features/users/auth/service"
	helper "srms_backend/internals/helpers"
)

type TokenParser interface {
	Parse(raw string) (*service.Claims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

// AuthMiddleware verifies the bearer token and stores user_id, userRole and
// (for students) student_id in locals. revoked may be nil.
func AuthMiddleware(tokens TokenParser, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := extractBearerToken(c)
		if err != nil {
			return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			log.Printf("[AUTH] rejected token on %s %s: %v", c.Method(), c.Path(), err)
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - invalid or expired token")
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.UserContext(), raw)
			if err != nil {
				log.Println("[ERROR] blacklist lookup:", err)
				return helper.JsonError(c, fiber.StatusInternalServerError, "internal server error")
			}
			if isRevoked {
				return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - token is revoked")
			}
		}

		storeClaimsToLocals(c, claims)
		helper.SetRawAccessToken(c, raw)
		return c.Next()
	}
}
