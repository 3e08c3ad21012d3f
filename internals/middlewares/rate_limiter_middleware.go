package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	helper "srms_backend/internals/helpers"
)

func newLimiter(max int, window time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return helper.JsonError(c, fiber.StatusTooManyRequests, message)
		},
	})
}

// GlobalRateLimiter applies to every /api route.
func GlobalRateLimiter() fiber.Handler {
	return newLimiter(100, time.Minute, "❌ Too many requests. Please try again later.")
}

func LoginRateLimiter() fiber.Handler {
	return newLimiter(5, time.Minute, "❌ Too many login attempts. Please wait a moment.")
}

// VerifyRateLimiter guards the public verification endpoints.
func VerifyRateLimiter() fiber.Handler {
	return newLimiter(30, time.Minute, "❌ Too many verification requests. Please try again later.")
}
