package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrphanedDocumentModel tracks a stored object whose record was never
// appended (ledger failure or lost append). The reaper deletes it after a
// grace period unless the record has appeared meanwhile.
type OrphanedDocumentModel struct {
	OrphanID        uuid.UUID `gorm:"type:uuid;primaryKey;column:orphan_id" json:"orphan_id"`
	OrphanObjectKey string    `gorm:"type:text;not null;uniqueIndex:uq_orphaned_documents_key;column:orphan_object_key" json:"object_key"`
	OrphanStudentID string    `gorm:"type:varchar(64);not null;column:orphan_student_id" json:"student_id"`
	OrphanRecordID  string    `gorm:"type:char(64);not null;column:orphan_record_id" json:"record_id"`
	OrphanReason    string    `gorm:"type:varchar(64);not null;column:orphan_reason" json:"reason"`

	OrphanCreatedAt time.Time `gorm:"column:orphan_created_at;autoCreateTime;index:idx_orphaned_documents_created_at" json:"created_at"`
}

func (OrphanedDocumentModel) TableName() string { return "orphaned_documents" }

func (o *OrphanedDocumentModel) BeforeCreate(tx *gorm.DB) error {
	if o.OrphanID == uuid.Nil {
		o.OrphanID = uuid.New()
	}
	return nil
}

const (
	OrphanReasonLedgerFailed = "ledger_failed"
	OrphanReasonStoreFailed  = "store_failed"
	OrphanReasonAppendFailed = "append_failed"
)
