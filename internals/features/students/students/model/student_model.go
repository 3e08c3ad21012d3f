// file: internals/features/students/students/model/student_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudentModel is the subject a record is issued to. StudentID is assigned
// by the institution and never changes; StudentInternalID is the storage key.
type StudentModel struct {
	StudentInternalID uuid.UUID `gorm:"type:uuid;primaryKey;column:student_internal_id" json:"-"`
	StudentID         string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_students_student_id;column:student_id" json:"student_id"`

	StudentName       string  `gorm:"type:varchar(160);not null;column:student_name" json:"student_name"`
	StudentEmail      *string `gorm:"type:varchar(255);uniqueIndex:uq_students_email;column:student_email" json:"student_email,omitempty"`
	StudentDepartment *string `gorm:"type:varchar(160);column:student_department" json:"student_department,omitempty"`

	// bcrypt; never serialized
	StudentPasswordHash *string `gorm:"type:text;column:student_password_hash" json:"-"`

	StudentCreatedAt time.Time `gorm:"column:student_created_at;autoCreateTime" json:"student_created_at"`
	StudentUpdatedAt time.Time `gorm:"column:student_updated_at;autoUpdateTime" json:"student_updated_at"`
}

func (StudentModel) TableName() string { return "students" }

func (s *StudentModel) BeforeCreate(tx *gorm.DB) error {
	if s.StudentInternalID == uuid.Nil {
		s.StudentInternalID = uuid.New()
	}
	return nil
}

func (s *StudentModel) Department() string {
	if s.StudentDepartment == nil {
		return ""
	}
	return *s.StudentDepartment
}
