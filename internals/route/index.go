// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"srms_backend/internals/features/certificates/ledger"
	"srms_backend/internals/features/certificates/records/repository"
	authService "srms_backend/internals/features/users/auth/service"
	"srms_backend/internals/helpers/blob"
	"srms_backend/internals/middlewares"
	authMiddleware "srms_backend/internals/middlewares/auth"
	routeDetails "srms_backend/internals/route/details"
)

var startTime time.Time

type Deps struct {
	DB     *gorm.DB
	Blobs  blob.Store
	Ledger ledger.Ledger
	Tokens *authService.TokenService

	PublicBaseURL string
	LedgerTimeout time.Duration
	MaxFileBytes  int64
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()

	BaseRoutes(app, d.DB)

	auth := authService.NewAuthService(d.DB, d.Tokens)
	protect := authMiddleware.AuthMiddleware(d.Tokens, auth)
	store := repository.NewRecordStore(d.DB)

	// ===================== API =====================
	api := app.Group("/api", middlewares.GlobalRateLimiter())

	log.Println("[INFO] Mounting auth routes...")
	routeDetails.AuthRoutes(api, auth, protect)

	log.Println("[INFO] Mounting student routes...")
	routeDetails.StudentRoutes(api, d.DB, store, d.Blobs, d.PublicBaseURL, protect)

	log.Println("[INFO] Mounting certificate routes...")
	routeDetails.CertificateRoutes(api, store, d.Blobs, d.Ledger, routeDetails.CertificateOptions{
		PublicBaseURL: d.PublicBaseURL,
		LedgerTimeout: d.LedgerTimeout,
		MaxFileBytes:  d.MaxFileBytes,
	}, protect)
}
