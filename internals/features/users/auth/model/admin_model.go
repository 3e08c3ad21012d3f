package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminModel is the single issuing-authority account type.
type AdminModel struct {
	AdminID           uuid.UUID `gorm:"type:uuid;primaryKey;column:admin_id" json:"admin_id"`
	AdminEmail        string    `gorm:"type:varchar(255);not null;uniqueIndex:uq_admins_email;column:admin_email" json:"admin_email"`
	AdminName         string    `gorm:"type:varchar(160);not null;column:admin_name" json:"admin_name"`
	AdminPasswordHash string    `gorm:"type:text;not null;column:admin_password_hash" json:"-"`

	AdminCreatedAt time.Time `gorm:"column:admin_created_at;autoCreateTime" json:"admin_created_at"`
	AdminUpdatedAt time.Time `gorm:"column:admin_updated_at;autoUpdateTime" json:"admin_updated_at"`
}

func (AdminModel) TableName() string { return "admins" }

func (a *AdminModel) BeforeCreate(tx *gorm.DB) error {
	if a.AdminID == uuid.Nil {
		a.AdminID = uuid.New()
	}
	return nil
}
