// file: internals/features/students/students/dto/student_dto.go
package dto

import (
	"regexp"
	"strings"
	"time"

	recordDTO "srms_backend/internals/features/certificates/records/dto"
	m "srms_backend/internals/features/students/students/model"
)

// StudentIDPattern keeps ids printable and free of the record id separator.
// At least one letter or digit is required, so "." and ".." never become an
// object key segment.
var StudentIDPattern = regexp.MustCompile(`^[._-]*[A-Za-z0-9][A-Za-z0-9._-]*$`)

const MaxStudentIDLen = 64

func ValidStudentID(id string) bool {
	return len(id) <= MaxStudentIDLen && StudentIDPattern.MatchString(id)
}

/* =========================================================
 * REQUESTS
 * ========================================================= */

type CreateStudentRequest struct {
	StudentID  string  `json:"student_id" validate:"required,max=64,student_id"`
	Name       string  `json:"name" validate:"required,min=1,max=160"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
	Department *string `json:"department" validate:"omitempty,max=160"`
	// Optional; enables student login.
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (r *CreateStudentRequest) Normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = trimPtr(r.Email, true)
	r.Department = trimPtr(r.Department, false)
	if r.Password != nil && *r.Password == "" {
		r.Password = nil
	}
}

func (r *CreateStudentRequest) ToModel(passwordHash *string) m.StudentModel {
	return m.StudentModel{
		StudentID:           r.StudentID,
		StudentName:         r.Name,
		StudentEmail:        r.Email,
		StudentDepartment:   r.Department,
		StudentPasswordHash: passwordHash,
	}
}

type ListStudentsQuery struct {
	Search     string `query:"search" validate:"omitempty,max=100"`
	Department string `query:"department" validate:"omitempty,max=160"`
}

func trimPtr(p *string, lower bool) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	if lower {
		v = strings.ToLower(v)
	}
	return &v
}

/* =========================================================
 * RESPONSE
 * ========================================================= */

type StudentResponse struct {
	StudentID  string    `json:"student_id"`
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	Department *string   `json:"department,omitempty"`
	CanLogin   bool      `json:"can_login"`
	CreatedAt  time.Time `json:"created_at"`

	Records []recordDTO.RecordResponse `json:"records,omitempty"`
}

func NewStudentResponse(s m.StudentModel) StudentResponse {
	return StudentResponse{
		StudentID:  s.StudentID,
		Name:       s.StudentName,
		Email:      s.StudentEmail,
		Department: s.StudentDepartment,
		CanLogin:   s.StudentPasswordHash != nil,
		CreatedAt:  s.StudentCreatedAt,
	}
}
