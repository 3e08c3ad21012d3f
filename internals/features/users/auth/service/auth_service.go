// file: internals/features/users/auth/service/auth_service.go
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"srms_backend/internals/constants"
	authModel "srms_backend/internals/features/users/auth/model"
	authRepo "srms_backend/internals/features/users/auth/repository"
	"srms_backend/internals/helpers/apperror"
)

var ErrBadCredentials = errors.New("auth: invalid email or password")

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	UserID    string    `json:"user_id"`
	StudentID string    `json:"student_id,omitempty"`
	Name      string    `json:"name"`
}

type AuthService struct {
	DB     *gorm.DB
	Tokens *TokenService
}

func NewAuthService(db *gorm.DB, tokens *TokenService) *AuthService {
	return &AuthService{DB: db, Tokens: tokens}
}

// Login checks admins first, then students with a password set.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.InvalidInput("email and password are required")
	}

	admin, err := authRepo.FindAdminByEmail(ctx, s.DB, email)
	switch {
	case err == nil:
		if !CheckPassword(admin.AdminPasswordHash, password) {
			return nil, ErrBadCredentials
		}
		return s.issue(admin.AdminID.String(), constants.RoleAdmin, "", admin.AdminName)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperror.Wrap(apperror.KindInternal, "find admin", err)
	}

	stu, err := authRepo.FindStudentByEmail(ctx, s.DB, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "find student", err)
	}
	if stu.StudentPasswordHash == nil || !CheckPassword(*stu.StudentPasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return s.issue(stu.StudentInternalID.String(), constants.RoleStudent, stu.StudentID, stu.StudentName)
}

func (s *AuthService) issue(userID, role, studentID, name string) (*LoginResult, error) {
	tok, exp, err := s.Tokens.Issue(userID, role, studentID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "sign token", err)
	}
	return &LoginResult{Token: tok, ExpiresAt: exp, Role: role, UserID: userID, StudentID: studentID, Name: name}, nil
}

// Logout revokes raw until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	claims, err := s.Tokens.Parse(raw)
	if err != nil {
		return err
	}
	exp := claims.ExpiresAt
	if exp.IsZero() {
		exp = time.Now().Add(s.Tokens.ttl)
	}
	if err := authRepo.BlacklistToken(ctx, s.DB, raw, exp); err != nil {
		return apperror.Wrap(apperror.KindInternal, "blacklist token", err)
	}
	return nil
}

// IsRevoked is the middleware's blacklist check.
func (s *AuthService) IsRevoked(ctx context.Context, raw string) (bool, error) {
	return authRepo.IsBlacklisted(ctx, s.DB, raw)
}

// SeedAdmin creates or resets an admin account.
func (s *AuthService) SeedAdmin(ctx context.Context, email, name, password string) (*authModel.AdminModel, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.InvalidInput("email is required")
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInvalidInput, "password", err)
	}

	admin := &authModel.AdminModel{AdminEmail: email, AdminName: name, AdminPasswordHash: hash}
	if err := authRepo.UpsertAdmin(ctx, s.DB, admin); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "seed admin", err)
	}
	stored, err := authRepo.FindAdminByEmail(ctx, s.DB, email)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "reload admin", err)
	}
	log.Printf("[INFO] admin %s ready", email)
	return stored, nil
}
