package controller

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/features/users/auth/service"
	helper "srms_backend/internals/helpers"
)

type AuthController struct {
	Auth      *service.AuthService
	Validator *validator.Validate
}

func NewAuthController(auth *service.AuthService) *AuthController {
	return &AuthController{Auth: auth, Validator: validator.New()}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := ac.Validator.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	res, err := ac.Auth.Login(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, service.ErrBadCredentials) {
		return helper.JsonError(c, fiber.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		return helper.FromAppError(c, err)
	}
	return helper.JsonOK(c, "login successful", res)
}

// POST /api/auth/logout
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	raw := helper.GetRawAccessToken(c)
	if raw == "" {
		return helper.JsonError(c, fiber.StatusUnauthorized, "no token provided")
	}
	if err := ac.Auth.Logout(c.UserContext(), raw); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return helper.JsonError(c, fiber.StatusUnauthorized, "invalid token")
		}
		return helper.FromAppError(c, err)
	}
	return helper.JsonOK(c, "logged out", nil)
}

// GET /api/auth/me
func (ac *AuthController) Me(c *fiber.Ctx) error {
	id, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return helper.FromAppError(c, err)
	}
	return helper.JsonOK(c, "ok", fiber.Map{
		"user_id":    id,
		"role":       helper.GetRole(c),
		"student_id": helper.GetStudentID(c),
	})
}
