// file: internals/features/certificates/records/controller/file_controller.go
package controller

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/certificates/records/service"
	helper "srms_backend/internals/helpers"
)

type FileController struct {
	Files *service.FileService
}

func NewFileController(files *service.FileService) *FileController {
	return &FileController{Files: files}
}

// GET /api/files/:kind/:recordId
func (fc *FileController) Get(c *fiber.Ctx) error {
	kind, ok := constants.DocumentKindFromSlug(c.Params("kind"))
	if !ok {
		return helper.JsonError(c, fiber.StatusNotFound, "unknown file kind")
	}

	file, err := fc.Files.Open(c.UserContext(), kind, c.Params("recordId"), service.Requester{
		Role:      helper.GetRole(c),
		StudentID: helper.GetStudentID(c),
	})
	if err != nil {
		return helper.FromAppError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", file.Name))
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(file.Data)
}
