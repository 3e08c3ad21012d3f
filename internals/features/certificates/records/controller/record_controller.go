// file: internals/features/certificates/records/controller/record_controller.go
package controller

import (
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/certificates/records/dto"
	model "srms_backend/internals/features/certificates/records/model"
	"srms_backend/internals/features/certificates/records/repository"
	"srms_backend/internals/features/certificates/records/service"
	helper "srms_backend/internals/helpers"
	"srms_backend/internals/helpers/apperror"
)

type RecordController struct {
	Issuer        *service.IssuanceService
	Verifier      *service.VerificationService
	Store         *repository.RecordStore
	Validator     *validator.Validate
	PublicBaseURL string
	MaxFileBytes  int64
}

func NewRecordController(issuer *service.IssuanceService, verifier *service.VerificationService, store *repository.RecordStore, publicBaseURL string, maxFileBytes int64) *RecordController {
	return &RecordController{
		Issuer:        issuer,
		Verifier:      verifier,
		Store:         store,
		Validator:     validator.New(),
		PublicBaseURL: publicBaseURL,
		MaxFileBytes:  maxFileBytes,
	}
}

/* =========================
   POST /api/students/:studentId/issue (admin)
   ========================= */

func (rc *RecordController) Issue(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.Params("studentId"))
	if !helper.IsMultipart(c) {
		return helper.JsonError(c, fiber.StatusBadRequest, "multipart/form-data is required")
	}
	adminID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return helper.FromAppError(c, err)
	}
	if _, err := rc.Store.FindStudent(c.UserContext(), studentID); err != nil {
		return helper.FromAppError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid multipart form")
	}
	docs, err := rc.readDocuments(form)
	if err != nil {
		return helper.FromAppError(c, err)
	}

	meta := dto.IssueForm{
		GraduationYear: helper.FirstValue(form, "graduationYear"),
		Percentage:     helper.FirstValue(form, "percentage"),
		Extra:          helper.FirstValue(form, "extra"),
	}
	meta.Normalize()
	parsed, err := meta.ToMetadata()
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	res, err := rc.Issuer.Issue(c.UserContext(), service.IssueRequest{
		StudentID:      studentID,
		Documents:      docs,
		GraduationYear: parsed.GraduationYear,
		Percentage:     parsed.Percentage,
		Extra:          parsed.Extra,
		IssuedBy:       adminID,
	})
	if err != nil {
		return helper.FromAppError(c, err)
	}

	return helper.JsonCreated(c, "record issued", fiber.Map{
		"record_id":        res.RecordID,
		"ledger_reference": res.LedgerReference,
		"record":           dto.ToRecordResponse(res.Record, rc.PublicBaseURL),
	})
}

/* =========================
   POST /api/students/verify (public)
   ========================= */

func (rc *RecordController) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Normalize()
	if err := rc.Validator.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	res, err := rc.Verifier.Verify(c.UserContext(), req.RecordID, service.VerifyOptions{ConfirmOnChain: req.ConfirmOnChain})
	if err != nil {
		return helper.FromAppError(c, err)
	}
	return helper.JsonOK(c, verifyMessage(res), res)
}

/* =========================
   POST /api/students/:studentId/verify-documents (public)
   ========================= */

func (rc *RecordController) VerifyDocuments(c *fiber.Ctx) error {
	if !helper.IsMultipart(c) {
		return helper.JsonError(c, fiber.StatusBadRequest, "multipart/form-data is required")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid multipart form")
	}
	docs, err := rc.readDocuments(form)
	if err != nil {
		return helper.FromAppError(c, err)
	}
	confirm := strings.EqualFold(strings.TrimSpace(helper.FirstValue(form, "confirmOnChain")), "true")

	res, err := rc.Verifier.VerifyDocuments(c.UserContext(), c.Params("studentId"), docs, service.VerifyOptions{ConfirmOnChain: confirm})
	if err != nil {
		return helper.FromAppError(c, err)
	}
	return helper.JsonOK(c, verifyMessage(res), res)
}

/* =========================
   PATCH /api/students/:studentId/records/:recordId/status (admin)
   ========================= */

func (rc *RecordController) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Normalize()
	if err := rc.Validator.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	rec, err := rc.Issuer.AdvanceStatus(
		c.UserContext(),
		c.Params("studentId"),
		strings.ToLower(c.Params("recordId")),
		model.RecordStatus(req.Status),
	)
	if err != nil {
		return helper.FromAppError(c, err)
	}
	return helper.JsonUpdated(c, "record status updated", dto.ToRecordResponse(rec, rc.PublicBaseURL))
}

/* =========================
   GET /api/students/:studentId/attestations (admin)
   ========================= */

func (rc *RecordController) Attestations(c *fiber.Ctx) error {
	atts, err := rc.Verifier.Attestations(c.UserContext(), c.Params("studentId"))
	if err != nil {
		return helper.FromAppError(c, err)
	}
	return helper.JsonOK(c, "ok", atts)
}

/* =========================
   Helpers
   ========================= */

// readDocuments collects the required files by form field. Missing files are
// left to the service, which reports them as InvalidInput.
func (rc *RecordController) readDocuments(form *multipart.Form) (map[constants.DocumentKind]service.Document, error) {
	out := make(map[constants.DocumentKind]service.Document, len(constants.RequiredDocumentKinds))
	for _, kind := range constants.RequiredDocumentKinds {
		fh := helper.FirstFile(form, kind.FormField())
		if fh == nil {
			continue
		}
		data, err := helper.ReadFileHeader(fh, rc.MaxFileBytes)
		if err != nil {
			return nil, apperror.InvalidInput(fmt.Sprintf("%s: %v", kind.FormField(), err))
		}
		out[kind] = service.Document{FileName: fh.Filename, Data: data}
	}
	return out, nil
}

func verifyMessage(res *dto.VerificationResult) string {
	if res.Valid {
		return "record is valid"
	}
	return fmt.Sprintf("record is not valid (%s)", res.Status)
}
