// file: internals/features/users/auth/repository/auth_repository.go
package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	studentModel "srms_backend/internals/features/students/students/model"
	authModel "srms_backend/internals/features/users/auth/model"
)

/* ====================== ACCOUNTS ====================== */

func FindAdminByEmail(ctx context.Context, db *gorm.DB, email string) (*authModel.AdminModel, error) {
	var admin authModel.AdminModel
	if err := db.WithContext(ctx).
		Where("LOWER(admin_email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func FindStudentByEmail(ctx context.Context, db *gorm.DB, email string) (*studentModel.StudentModel, error) {
	var s studentModel.StudentModel
	if err := db.WithContext(ctx).
		Where("LOWER(student_email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertAdmin creates the admin or resets its name and password.
func UpsertAdmin(ctx context.Context, db *gorm.DB, admin *authModel.AdminModel) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "admin_email"}},
			DoUpdates: clause.AssignmentColumns([]string{"admin_name", "admin_password_hash", "admin_updated_at"}),
		}).
		Create(admin).Error
}

/* ====================== BLACKLIST TOKEN ====================== */

// BlacklistToken is idempotent.
func BlacklistToken(ctx context.Context, db *gorm.DB, token string, expiresAt time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(&authModel.TokenBlacklist{Token: token, ExpiredAt: expiresAt.UTC()}).Error
}

func IsBlacklisted(ctx context.Context, db *gorm.DB, token string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&authModel.TokenBlacklist{}).
		Where("token = ?", token).
		Count(&n).Error
	return n > 0, err
}

// CleanupExpiredBlacklist hard-deletes entries that expired before cutoff.
func CleanupExpiredBlacklist(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Unscoped().
		Where("expired_at < ?", cutoff.UTC()).
		Delete(&authModel.TokenBlacklist{})
	return res.RowsAffected, res.Error
}
