// file: internals/features/certificates/records/repository/record_store.go
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "srms_backend/internals/features/certificates/records/model"
	studentModel "srms_backend/internals/features/students/students/model"
	"srms_backend/internals/helpers/apperror"
)

/*
RecordStore owns students' record collections.

Uniqueness of (student_id, record_id) is enforced by the unique index
uq_student_records_student_record; AppendRecord maps a violation to
Conflict. Append and DeleteStudent both lock the student row, so they
serialize per student.
*/
type RecordStore struct {
	DB *gorm.DB
}

func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{DB: db}
}

/* =========================
   Small helpers
   ========================= */

// isUniqueViolation: postgres SQLSTATE 23505, gorm's translated error, or the
// sqlite message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func findStudent(tx *gorm.DB, studentID string) (*studentModel.StudentModel, error) {
	var s studentModel.StudentModel
	err := tx.Where("student_id = ?", studentID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("student not found")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load student", err)
	}
	return &s, nil
}

/* =========================
   Reads
   ========================= */

func (s *RecordStore) FindStudent(ctx context.Context, studentID string) (*studentModel.StudentModel, error) {
	return findStudent(s.DB.WithContext(ctx), studentID)
}

// FindStudentByRecordID resolves a record id through idx_student_records_record_id.
func (s *RecordStore) FindStudentByRecordID(ctx context.Context, recordID string) (*studentModel.StudentModel, *model.StudentRecordModel, error) {
	db := s.DB.WithContext(ctx)

	var rec model.StudentRecordModel
	err := db.Preload("Documents", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("document_position ASC")
	}).Where("record_id = ?", recordID).
		Order("record_issued_at ASC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperror.NotFound("record not found")
	}
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindInternal, "load record", err)
	}

	stu, err := findStudent(db, rec.RecordStudentID)
	if err != nil {
		return nil, nil, err
	}
	return stu, &rec, nil
}

func (s *RecordStore) FindRecord(ctx context.Context, studentID, recordID string) (*model.StudentRecordModel, error) {
	var rec model.StudentRecordModel
	err := s.DB.WithContext(ctx).
		Where("record_student_id = ? AND record_id = ?", studentID, recordID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("record not found")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "load record", err)
	}
	return &rec, nil
}

func (s *RecordStore) HasRecord(ctx context.Context, studentID, recordID string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).
		Model(&model.StudentRecordModel{}).
		Where("record_student_id = ? AND record_id = ?", studentID, recordID).
		Count(&n).Error; err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "check record", err)
	}
	return n > 0, nil
}

// ListRecords returns the student's records oldest first.
func (s *RecordStore) ListRecords(ctx context.Context, studentID string) ([]model.StudentRecordModel, error) {
	var rows []model.StudentRecordModel
	if err := s.DB.WithContext(ctx).
		Preload("Documents", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("document_position ASC")
		}).
		Where("record_student_id = ?", studentID).
		Order("record_issued_at ASC, record_id ASC").
		Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "list records", err)
	}
	return rows, nil
}

func (s *RecordStore) CountRecords(ctx context.Context, studentID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&model.StudentRecordModel{}).
		Where("record_student_id = ?", studentID).
		Count(&n).Error
	if err != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "count records", err)
	}
	return n, nil
}

/* =========================
   Writes
   ========================= */

// AppendRecord inserts rec and its documents under a lock on the student row.
func (s *RecordStore) AppendRecord(ctx context.Context, studentID string, rec *model.StudentRecordModel) error {
	if rec == nil {
		return apperror.InvalidInput("record is required")
	}
	rec.RecordStudentID = studentID

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findStudent(lockForUpdate(tx), studentID); err != nil {
			return err
		}

		if err := tx.Omit("Documents").Create(rec).Error; err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("record already issued for this student")
			}
			return apperror.Wrap(apperror.KindInternal, "insert record", err)
		}

		for i := range rec.Documents {
			rec.Documents[i].DocumentRecordInternalID = rec.RecordInternalID
		}
		if len(rec.Documents) > 0 {
			if err := tx.Create(&rec.Documents).Error; err != nil {
				return apperror.Wrap(apperror.KindInternal, "insert record documents", err)
			}
		}
		return nil
	})
}

// AdvanceStatus moves a record forward. on-chain needs a ledger reference,
// and an existing reference is never replaced. ledgerRef must come from a
// ledger write; callers never pass client input here.
func (s *RecordStore) AdvanceStatus(ctx context.Context, studentID, recordID string, to model.RecordStatus, ledgerRef *string) (*model.StudentRecordModel, error) {
	if !to.Valid() {
		return nil, apperror.InvalidInput("unknown status " + string(to))
	}

	var out model.StudentRecordModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.StudentRecordModel
		err := lockForUpdate(tx).
			Where("record_student_id = ? AND record_id = ?", studentID, recordID).
			Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("record not found")
		}
		if err != nil {
			return apperror.Wrap(apperror.KindInternal, "load record", err)
		}

		if !rec.RecordStatus.CanAdvanceTo(to) {
			return apperror.InvalidInput("status can only move forward (" + string(rec.RecordStatus) + " -> " + string(to) + ")")
		}

		updates := map[string]interface{}{"record_status": to}
		hasRef := ledgerRef != nil && strings.TrimSpace(*ledgerRef) != ""
		switch {
		case rec.RecordLedgerReference != nil && hasRef:
			return apperror.InvalidInput("ledger reference is already set")
		case to == model.StatusOnChain && rec.RecordLedgerReference == nil && !hasRef:
			return apperror.InvalidInput("on-chain requires a ledger reference")
		case to != model.StatusOnChain && hasRef:
			return apperror.InvalidInput("ledger reference is only accepted with on-chain")
		case hasRef:
			updates["record_ledger_reference"] = strings.TrimSpace(*ledgerRef)
		}

		if err := tx.Model(&model.StudentRecordModel{}).
			Where("record_internal_id = ?", rec.RecordInternalID).
			Updates(updates).Error; err != nil {
			return apperror.Wrap(apperror.KindInternal, "update status", err)
		}
		if err := tx.Preload("Documents", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("document_position ASC")
		}).Where("record_internal_id = ?", rec.RecordInternalID).Take(&out).Error; err != nil {
			return apperror.Wrap(apperror.KindInternal, "reload record", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStudent removes the student with records and documents, unless a
// record has reached on-chain. It returns the object keys that belonged to
// the deleted records.
func (s *RecordStore) DeleteStudent(ctx context.Context, studentID string) ([]string, error) {
	var keys []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stu, err := findStudent(lockForUpdate(tx), studentID)
		if err != nil {
			return err
		}

		var onChain int64
		if err := tx.Model(&model.StudentRecordModel{}).
			Where("record_student_id = ? AND (record_status = ? OR record_ledger_reference IS NOT NULL)", studentID, model.StatusOnChain).
			Count(&onChain).Error; err != nil {
			return apperror.Wrap(apperror.KindInternal, "check on-chain records", err)
		}
		if onChain > 0 {
			return apperror.Forbidden("student has on-chain records and cannot be deleted")
		}

		var recs []model.StudentRecordModel
		if err := tx.Preload("Documents").
			Where("record_student_id = ?", studentID).
			Find(&recs).Error; err != nil {
			return apperror.Wrap(apperror.KindInternal, "load records", err)
		}
		ids := make([]interface{}, 0, len(recs))
		for _, r := range recs {
			ids = append(ids, r.RecordInternalID)
			for _, d := range r.Documents {
				keys = append(keys, d.DocumentObjectKey)
			}
			if r.RecordQRObjectKey != nil {
				keys = append(keys, *r.RecordQRObjectKey)
			}
		}
		if len(ids) > 0 {
			if err := tx.Where("document_record_internal_id IN ?", ids).
				Delete(&model.StudentRecordDocumentModel{}).Error; err != nil {
				return apperror.Wrap(apperror.KindInternal, "delete documents", err)
			}
			if err := tx.Where("record_internal_id IN ?", ids).
				Delete(&model.StudentRecordModel{}).Error; err != nil {
				return apperror.Wrap(apperror.KindInternal, "delete records", err)
			}
		}
		if err := tx.Delete(stu).Error; err != nil {
			return apperror.Wrap(apperror.KindInternal, "delete student", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

/* =========================
   Orphaned documents
   ========================= */

// AddOrphans records object keys left behind by a failed issuance. Keys
// already tracked are ignored.
func (s *RecordStore) AddOrphans(ctx context.Context, orphans []model.OrphanedDocumentModel) error {
	if len(orphans) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "orphan_object_key"}}, DoNothing: true}).
		Create(&orphans).Error; err != nil {
		return apperror.Wrap(apperror.KindInternal, "record orphaned documents", err)
	}
	return nil
}

func (s *RecordStore) ListOrphansBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.OrphanedDocumentModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.OrphanedDocumentModel
	if err := s.DB.WithContext(ctx).
		Where("orphan_created_at < ?", cutoff).
		Order("orphan_created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "list orphaned documents", err)
	}
	return rows, nil
}

// ClaimOrphans drops the orphan rows of keys an issuance is about to write
// again. It blocks while the reaper holds one of those rows.
func (s *RecordStore) ClaimOrphans(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).
		Where("orphan_object_key IN ?", keys).
		Delete(&model.OrphanedDocumentModel{})
	if res.Error != nil {
		return 0, apperror.Wrap(apperror.KindInternal, "claim orphaned documents", res.Error)
	}
	return res.RowsAffected, nil
}

// ErrOrphanGone reports that the row was claimed or re-recorded after it was
// listed.
var ErrOrphanGone = errors.New("orphan row claimed or refreshed")

// ReapOrphan locks the orphan row, calls fn with whether its record exists,
// and drops the row once fn succeeds. Rows newer than cutoff are left alone.
func (s *RecordStore) ReapOrphan(ctx context.Context, id uuid.UUID, cutoff time.Time, fn func(o *model.OrphanedDocumentModel, adopted bool) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.OrphanedDocumentModel
		err := lockForUpdate(tx).
			Where("orphan_id = ? AND orphan_created_at < ?", id, cutoff).
			Take(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrphanGone
		}
		if err != nil {
			return apperror.Wrap(apperror.KindInternal, "lock orphan row", err)
		}

		var n int64
		if err := tx.Model(&model.StudentRecordModel{}).
			Where("record_student_id = ? AND record_id = ?", o.OrphanStudentID, o.OrphanRecordID).
			Count(&n).Error; err != nil {
			return apperror.Wrap(apperror.KindInternal, "check record", err)
		}

		if err := fn(&o, n > 0); err != nil {
			return err
		}
		if err := tx.Where("orphan_id = ?", o.OrphanID).Delete(&model.OrphanedDocumentModel{}).Error; err != nil {
			return apperror.Wrap(apperror.KindInternal, "delete orphan row", err)
		}
		return nil
	})
}
