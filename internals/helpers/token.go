package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LocRawToken holds the verified bearer token for logout.
const LocRawToken = "raw_token"

// GetRawAccessToken returns the access token from locals, the Authorization
// header, or the access_token cookie, in that order.
func GetRawAccessToken(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocRawToken).(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	const p = "Bearer "
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > len(p) && strings.EqualFold(auth[:len(p)], p) {
		return strings.TrimSpace(auth[len(p):])
	}
	return strings.TrimSpace(c.Cookies("access_token"))
}

func SetRawAccessToken(c *fiber.Ctx, raw string) {
	if raw = strings.TrimSpace(raw); raw != "" {
		c.Locals(LocRawToken, raw)
	}
}

// IsMultipart reports whether the request body is multipart/form-data.
func IsMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}
