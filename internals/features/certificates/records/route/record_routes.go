// file: internals/features/certificates/records/route/record_routes.go
package route

import (
	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/certificates/records/controller"
	authMiddleware "srms_backend/internals/middlewares/auth"
	rateLimiter "srms_backend/internals/middlewares"
)

// RecordRoutes mounts issuance, verification and file retrieval under router
// (normally /api). protect is the JWT middleware.
func RecordRoutes(router fiber.Router, rc *controller.RecordController, fc *controller.FileController, protect fiber.Handler) {
	adminOnly := authMiddleware.OnlyRoles(constants.RoleErrorAdmin("record issuance"), constants.AdminOnly...)

	// public
	students := router.Group("/students")
	students.Post("/verify", rateLimiter.VerifyRateLimiter(), rc.Verify)
	students.Post("/:studentId/verify-documents", rateLimiter.VerifyRateLimiter(), rc.VerifyDocuments)

	// admin
	students.Post("/:studentId/issue", protect, adminOnly, rc.Issue)
	students.Patch("/:studentId/records/:recordId/status", protect, adminOnly, rc.UpdateStatus)
	students.Get("/:studentId/attestations", protect, adminOnly, rc.Attestations)

	// admin or owner (checked per record)
	router.Get("/files/:kind/:recordId", protect, fc.Get)
}
