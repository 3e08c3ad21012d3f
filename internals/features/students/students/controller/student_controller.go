// file: internals/features/students/students/controller/student_controller.go
package controller

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	recordDTO "srms_backend/internals/features/certificates/records/dto"
	"srms_backend/internals/features/certificates/records/repository"
	"srms_backend/internals/features/students/students/dto"
	m "srms_backend/internals/features/students/students/model"
	authService "srms_backend/internals/features/users/auth/service"
	helper "srms_backend/internals/helpers"
	"srms_backend/internals/helpers/apperror"
	"srms_backend/internals/helpers/blob"
)

type StudentController struct {
	DB            *gorm.DB
	Records       *repository.RecordStore
	Blobs         blob.Store
	Validator     *validator.Validate
	PublicBaseURL string
}

func NewStudentController(db *gorm.DB, records *repository.RecordStore, blobs blob.Store, publicBaseURL string) *StudentController {
	v := validator.New()
	_ = v.RegisterValidation("student_id", func(fl validator.FieldLevel) bool {
		return dto.ValidStudentID(fl.Field().String())
	})
	return &StudentController{DB: db, Records: records, Blobs: blobs, Validator: v, PublicBaseURL: publicBaseURL}
}

/* =========================
   POST /api/students (admin)
   ========================= */

func (sc *StudentController) Create(c *fiber.Ctx) error {
	var req dto.CreateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Normalize()
	if err := sc.Validator.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	var hash *string
	if req.Password != nil {
		h, err := authService.HashPassword(*req.Password)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
		}
		hash = &h
	}

	row := req.ToModel(hash)
	if err := sc.DB.WithContext(c.UserContext()).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
			return helper.FromAppError(c, apperror.Conflict("student id or email already exists"))
		}
		return helper.FromAppError(c, apperror.Wrap(apperror.KindInternal, "create student", err))
	}

	log.Printf("[INFO] student %s created", row.StudentID)
	return helper.JsonCreated(c, "student created", dto.NewStudentResponse(row))
}

/* =========================
   GET /api/students (admin)
   ========================= */

func (sc *StudentController) List(c *fiber.Ctx) error {
	var q dto.ListStudentsQuery
	if err := c.QueryParser(&q); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := sc.Validator.Struct(&q); err != nil {
		return helper.ValidationError(c, err)
	}
	p := helper.ResolvePaging(c, 20, 100)

	tx := sc.DB.WithContext(c.UserContext()).Model(&m.StudentModel{})
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(student_name) LIKE ? OR LOWER(student_id) LIKE ?", like, like)
	}
	if d := strings.TrimSpace(q.Department); d != "" {
		tx = tx.Where("student_department = ?", d)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return helper.FromAppError(c, apperror.Wrap(apperror.KindInternal, "count students", err))
	}
	var rows []m.StudentModel
	if err := tx.Order("student_created_at DESC, student_id ASC").
		Offset(p.Offset).Limit(p.Limit).
		Find(&rows).Error; err != nil {
		return helper.FromAppError(c, apperror.Wrap(apperror.KindInternal, "list students", err))
	}

	out := make([]dto.StudentResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.NewStudentResponse(r))
	}
	pg := helper.BuildPagination(total, p.Page, p.PerPage)
	return helper.JsonList(c, "ok", out, &pg)
}

/* =========================
   GET /api/students/:studentId (admin or self)
   ========================= */

func (sc *StudentController) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	stu, err := sc.Records.FindStudent(ctx, c.Params("studentId"))
	if err != nil {
		return helper.FromAppError(c, err)
	}
	recs, err := sc.Records.ListRecords(ctx, stu.StudentID)
	if err != nil {
		return helper.FromAppError(c, err)
	}

	out := dto.NewStudentResponse(*stu)
	out.Records = recordDTO.ToRecordResponses(recs, sc.PublicBaseURL)
	return helper.JsonOK(c, "ok", out)
}

/* =========================
   DELETE /api/students/:studentId (admin)
   ========================= */

func (sc *StudentController) Delete(c *fiber.Ctx) error {
	studentID := c.Params("studentId")
	keys, err := sc.Records.DeleteStudent(c.UserContext(), studentID)
	if err != nil {
		return helper.FromAppError(c, err)
	}

	// rows are gone; stray objects only cost storage
	sc.deleteObjects(context.WithoutCancel(c.UserContext()), keys)

	log.Printf("[INFO] student %s deleted (%d objects)", studentID, len(keys))
	return helper.JsonDeleted(c, "student deleted", fiber.Map{"student_id": studentID})
}

func (sc *StudentController) deleteObjects(ctx context.Context, keys []string) {
	if sc.Blobs == nil {
		return
	}
	for _, k := range keys {
		if err := sc.Blobs.Delete(ctx, k); err != nil {
			log.Printf("[BLOB] ⚠️ delete %s: %v", k, err)
		}
	}
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
