// file: internals/features/certificates/records/model/record_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/* ===================== Status ===================== */

type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusVerified RecordStatus = "verified" // reserved, never set by issuance
	StatusOnChain  RecordStatus = "on-chain"
)

var statusRank = map[RecordStatus]int{
	StatusPending:  0,
	StatusVerified: 1,
	StatusOnChain:  2,
}

func (s RecordStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo is true only for strictly forward moves.
func (s RecordStatus) CanAdvanceTo(next RecordStatus) bool {
	from, ok1 := statusRank[s]
	to, ok2 := statusRank[next]
	return ok1 && ok2 && to > from
}

/* ===================== Record ===================== */

type StudentRecordModel struct {
	RecordInternalID uuid.UUID `gorm:"type:uuid;primaryKey;column:record_internal_id" json:"-"`

	RecordStudentID string `gorm:"type:varchar(64);not null;column:record_student_id;uniqueIndex:uq_student_records_student_record,priority:1" json:"student_id"`
	RecordID        string `gorm:"type:char(64);not null;column:record_id;uniqueIndex:uq_student_records_student_record,priority:2;index:idx_student_records_record_id" json:"record_id"`

	RecordStatus          RecordStatus `gorm:"type:varchar(16);not null;default:'pending';column:record_status" json:"status"`
	RecordLedgerReference *string      `gorm:"type:varchar(130);column:record_ledger_reference" json:"ledger_reference,omitempty"`

	RecordIssuedBy string    `gorm:"type:varchar(64);not null;column:record_issued_by" json:"issued_by"`
	RecordIssuedAt time.Time `gorm:"not null;column:record_issued_at;index:idx_student_records_issued_at" json:"issued_at"`

	// descriptive only; never part of identity
	RecordGraduationYear *int              `gorm:"column:record_graduation_year" json:"graduation_year,omitempty"`
	RecordPercentage     *float64          `gorm:"column:record_percentage" json:"percentage,omitempty"`
	RecordExtra          datatypes.JSONMap `gorm:"column:record_extra" json:"extra,omitempty"`

	RecordQRObjectKey *string `gorm:"type:text;column:record_qr_object_key" json:"-"`

	Documents []StudentRecordDocumentModel `gorm:"foreignKey:DocumentRecordInternalID;references:RecordInternalID" json:"documents,omitempty"`

	RecordCreatedAt time.Time `gorm:"column:record_created_at;autoCreateTime" json:"-"`
}

func (StudentRecordModel) TableName() string { return "student_records" }

func (r *StudentRecordModel) BeforeCreate(tx *gorm.DB) error {
	if r.RecordInternalID == uuid.Nil {
		r.RecordInternalID = uuid.New()
	}
	return nil
}

func (r *StudentRecordModel) IsOnChain() bool {
	return r.RecordStatus == StatusOnChain && r.RecordLedgerReference != nil && *r.RecordLedgerReference != ""
}

/* ===================== Documents ===================== */

// StudentRecordDocumentModel is one fingerprinted document of a record, in
// canonical position.
type StudentRecordDocumentModel struct {
	DocumentInternalID       uuid.UUID `gorm:"type:uuid;primaryKey;column:document_internal_id" json:"-"`
	DocumentRecordInternalID uuid.UUID `gorm:"type:uuid;not null;column:document_record_internal_id;uniqueIndex:uq_record_documents_position,priority:1" json:"-"`

	DocumentKind        string `gorm:"type:varchar(32);not null;column:document_kind" json:"kind"`
	DocumentPosition    int    `gorm:"not null;column:document_position;uniqueIndex:uq_record_documents_position,priority:2" json:"position"`
	DocumentFingerprint string `gorm:"type:char(64);not null;column:document_fingerprint" json:"fingerprint"`
	DocumentCID         string `gorm:"type:varchar(128);column:document_cid" json:"cid"`
	DocumentSize        int64  `gorm:"not null;column:document_size" json:"size"`
	DocumentContentType string `gorm:"type:varchar(128);column:document_content_type" json:"content_type"`
	DocumentObjectKey   string `gorm:"type:text;not null;column:document_object_key" json:"-"`

	DocumentCreatedAt time.Time `gorm:"column:document_created_at;autoCreateTime" json:"-"`
}

func (StudentRecordDocumentModel) TableName() string { return "student_record_documents" }

func (d *StudentRecordDocumentModel) BeforeCreate(tx *gorm.DB) error {
	if d.DocumentInternalID == uuid.Nil {
		d.DocumentInternalID = uuid.New()
	}
	return nil
}
