package helper

import (
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/helpers/apperror"
)

// FromAppError renders err with the status of its kind. Internal details of
// 5xx errors are logged, not returned.
func FromAppError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return JsonError(c, fe.Code, fe.Message)
	}

	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	msg := err.Error()
	var ae *apperror.Error
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	if status >= 500 {
		log.Printf("[ERROR] %s %s: %v", c.Method(), c.Path(), err)
		if kind == apperror.KindInternal {
			msg = "internal server error"
		}
	}

	return c.Status(status).JSON(ErrorResponse{
		Success:   false,
		Message:   msg,
		ErrorCode: string(kind),
	})
}

// ValidationError turns validator errors into field -> messages. Any other
// error becomes a plain 400.
func ValidationError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return JsonError(c, fiber.StatusBadRequest, err.Error())
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		fields[name] = append(fields[name], validationMessage(fe))
	}
	return JsonValidationError(c, fields)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
