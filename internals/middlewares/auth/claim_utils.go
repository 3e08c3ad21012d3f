// internals/middlewares/auth/claim_utils.go
package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/users/auth/service"
	helper "srms_backend/internals/helpers"
)

// extractBearerToken reads Authorization, falling back to the access_token
// cookie.
func extractBearerToken(c *fiber.Ctx) (string, error) {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if auth == "" {
		if cookieTok := strings.TrimSpace(c.Cookies("access_token")); cookieTok != "" {
			auth = "Bearer " + cookieTok
		}
	}
	if auth == "" {
		return "", errors.New("unauthorized - no token provided")
	}

	fields := strings.Fields(auth)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", errors.New("unauthorized - invalid token format")
	}
	tok := strings.Trim(strings.TrimSpace(fields[1]), "\"'")
	if tok == "" {
		return "", errors.New("unauthorized - empty token")
	}
	return tok, nil
}

func storeClaimsToLocals(c *fiber.Ctx, claims *service.Claims) {
	c.Locals(helper.LocUserID, claims.UserID)
	c.Locals(helper.LocRole, strings.ToLower(claims.Role))
	if claims.Role == constants.RoleStudent && claims.StudentID != "" {
		c.Locals(helper.LocStudentID, claims.StudentID)
	}
}
