package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"srms_backend/internals/features/certificates/records/repository"
	studentController "srms_backend/internals/features/students/students/controller"
	studentRoute "srms_backend/internals/features/students/students/route"
	"srms_backend/internals/helpers/blob"
)

func StudentRoutes(api fiber.Router, db *gorm.DB, store *repository.RecordStore, blobs blob.Store, publicBaseURL string, protect fiber.Handler) {
	sc := studentController.NewStudentController(db, store, blobs, publicBaseURL)
	studentRoute.StudentRoutes(api, sc, protect)
}
