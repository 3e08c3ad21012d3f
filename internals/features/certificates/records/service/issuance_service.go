// file: internals/features/certificates/records/service/issuance_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/certificates/ledger"
	model "srms_backend/internals/features/certificates/records/model"
	studentModel "srms_backend/internals/features/students/students/model"
	"srms_backend/internals/helpers/apperror"
	"srms_backend/internals/helpers/blob"
	"srms_backend/internals/helpers/metrics"
)

const DefaultLedgerTimeout = 60 * time.Second

// IssuanceStore is the part of the record store issuance needs.
type IssuanceStore interface {
	FindStudent(ctx context.Context, studentID string) (*studentModel.StudentModel, error)
	HasRecord(ctx context.Context, studentID, recordID string) (bool, error)
	AppendRecord(ctx context.Context, studentID string, rec *model.StudentRecordModel) error
	AddOrphans(ctx context.Context, orphans []model.OrphanedDocumentModel) error
	ClaimOrphans(ctx context.Context, keys []string) (int64, error)
	FindRecord(ctx context.Context, studentID, recordID string) (*model.StudentRecordModel, error)
	AdvanceStatus(ctx context.Context, studentID, recordID string, to model.RecordStatus, ledgerRef *string) (*model.StudentRecordModel, error)
}

type IssueRequest struct {
	StudentID      string
	Documents      map[constants.DocumentKind]Document
	GraduationYear *int
	Percentage     *float64
	Extra          map[string]interface{}
	IssuedBy       string
}

type IssueResult struct {
	RecordID        string
	LedgerReference string
	Record          *model.StudentRecordModel
}

type IssuanceOptions struct {
	LedgerTimeout time.Duration
	// QR codes encode PublicBaseURL/verify/<record_id> when set.
	PublicBaseURL string
	Now           func() time.Time
}

/*
IssuanceService runs the issuance pipeline:

	validate -> fingerprint -> derive id -> duplicate check
	-> store blobs -> ledger write -> append record

Everything before the blob writes is side-effect free. Blobs written by a
request that fails later are recorded as orphans for the reaper.
*/
type IssuanceService struct {
	store  IssuanceStore
	blobs  blob.Store
	ledger ledger.Ledger
	opts   IssuanceOptions
}

func NewIssuanceService(store IssuanceStore, blobs blob.Store, l ledger.Ledger, opts IssuanceOptions) *IssuanceService {
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = DefaultLedgerTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &IssuanceService{store: store, blobs: blobs, ledger: l, opts: opts}
}

func (s *IssuanceService) Issue(ctx context.Context, req IssueRequest) (res *IssueResult, err error) {
	defer func() { metrics.IssuanceTotal.WithLabelValues(issuanceOutcome(err)).Inc() }()

	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		return nil, apperror.InvalidInput("student id is required")
	}
	if _, err := s.store.FindStudent(ctx, studentID); err != nil {
		return nil, err
	}
	if err := validateMetadata(req); err != nil {
		return nil, err
	}

	docs, fps, err := hashDocuments(req.Documents)
	if err != nil {
		return nil, err
	}
	recordID, err := deriveRecordID(studentID, fps)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.HasRecord(ctx, studentID, recordID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.Conflict("record already issued for this student")
	}

	/* ---------- side effects from here on ---------- */

	// Objects left by an earlier failed attempt at this record are ours
	// again; take them away from the reaper before overwriting them.
	if n, err := s.store.ClaimOrphans(ctx, objectKeys(studentID, recordID, docs)); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "claim objects", err)
	} else if n > 0 {
		log.Printf("[ISSUE] reclaimed %d orphaned objects for record=%s", n, recordID)
	}

	rows, qrKey, written, err := s.storeBlobs(ctx, studentID, recordID, docs)
	if err != nil {
		s.recordOrphans(ctx, studentID, recordID, written, model.OrphanReasonStoreFailed)
		return nil, apperror.Wrap(apperror.KindInternal, "store documents", err)
	}

	ref, err := s.writeLedger(ctx, studentID, recordID)
	if err != nil {
		log.Printf("[ISSUE] ❌ ledger write student=%s record=%s: %v", studentID, recordID, err)
		s.recordOrphans(ctx, studentID, recordID, written, model.OrphanReasonLedgerFailed)
		return nil, apperror.Wrap(apperror.KindLedgerUnavailable, "ledger write failed", err)
	}

	rec := &model.StudentRecordModel{
		RecordID:              recordID,
		RecordStatus:          model.StatusOnChain,
		RecordLedgerReference: &ref,
		RecordIssuedBy:        req.IssuedBy,
		RecordIssuedAt:        s.opts.Now().UTC(),
		RecordGraduationYear:  req.GraduationYear,
		RecordPercentage:      req.Percentage,
		RecordExtra:           req.Extra,
		RecordQRObjectKey:     &qrKey,
		Documents:             rows,
	}
	if err := s.store.AppendRecord(ctx, studentID, rec); err != nil {
		// A concurrent twin with the same id owns these keys now.
		if apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		log.Printf("[ISSUE] ❌ append after ledger write student=%s record=%s ref=%s: %v", studentID, recordID, ref, err)
		s.recordOrphans(ctx, studentID, recordID, written, model.OrphanReasonAppendFailed)
		return nil, err
	}

	log.Printf("[ISSUE] ✅ student=%s record=%s ref=%s", studentID, recordID, ref)
	return &IssueResult{RecordID: recordID, LedgerReference: ref, Record: rec}, nil
}

// AdvanceStatus moves a record forward. Promoting to on-chain writes the
// record to the ledger first; the stored reference is the one the ledger
// returned.
func (s *IssuanceService) AdvanceStatus(ctx context.Context, studentID, recordID string, to model.RecordStatus) (*model.StudentRecordModel, error) {
	if !to.Valid() {
		return nil, apperror.InvalidInput("unknown status " + string(to))
	}
	rec, err := s.store.FindRecord(ctx, studentID, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.RecordStatus.CanAdvanceTo(to) {
		return nil, apperror.InvalidInput("status can only move forward (" + string(rec.RecordStatus) + " -> " + string(to) + ")")
	}

	var ref *string
	if to == model.StatusOnChain && rec.RecordLedgerReference == nil {
		r, err := s.writeLedger(ctx, studentID, recordID)
		if err != nil {
			log.Printf("[STATUS] ❌ ledger write student=%s record=%s: %v", studentID, recordID, err)
			return nil, apperror.Wrap(apperror.KindLedgerUnavailable, "ledger write failed", err)
		}
		ref = &r
	}

	out, err := s.store.AdvanceStatus(ctx, studentID, recordID, to, ref)
	if err != nil {
		return nil, err
	}
	log.Printf("[STATUS] ✅ student=%s record=%s status=%s", studentID, recordID, to)
	return out, nil
}

/* =========================
   Steps
   ========================= */

func validateMetadata(req IssueRequest) error {
	if y := req.GraduationYear; y != nil && (*y < 1900 || *y > 2100) {
		return apperror.InvalidInput("graduationYear must be between 1900 and 2100")
	}
	if p := req.Percentage; p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 || *p > 100) {
		return apperror.InvalidInput("percentage must be between 0 and 100")
	}
	return nil
}

// storeBlobs writes the documents and the QR code. written lists every key
// that reached the store, also on error.
func (s *IssuanceService) storeBlobs(ctx context.Context, studentID, recordID string, docs []hashedDocument) (rows []model.StudentRecordDocumentModel, qrKey string, written []string, err error) {
	rows = make([]model.StudentRecordDocumentModel, 0, len(docs))
	for _, d := range docs {
		key := blob.DocumentKey(studentID, recordID, d.Kind.FileName())
		if err := s.blobs.Put(ctx, key, d.Data, d.ContentType); err != nil {
			return nil, "", written, fmt.Errorf("put %s: %w", key, err)
		}
		written = append(written, key)
		rows = append(rows, model.StudentRecordDocumentModel{
			DocumentKind:        string(d.Kind),
			DocumentPosition:    d.Position,
			DocumentFingerprint: d.Fingerprint.String(),
			DocumentCID:         d.CID,
			DocumentSize:        int64(len(d.Data)),
			DocumentContentType: d.ContentType,
			DocumentObjectKey:   key,
		})
	}

	png, err := qrcode.Encode(s.qrPayload(recordID), qrcode.Medium, 256)
	if err != nil {
		return nil, "", written, fmt.Errorf("encode qr: %w", err)
	}
	qrKey = blob.DocumentKey(studentID, recordID, constants.DocQRCode.FileName())
	if err := s.blobs.Put(ctx, qrKey, png, constants.DocQRCode.ContentType()); err != nil {
		return nil, "", written, fmt.Errorf("put %s: %w", qrKey, err)
	}
	written = append(written, qrKey)
	return rows, qrKey, written, nil
}

func objectKeys(studentID, recordID string, docs []hashedDocument) []string {
	keys := make([]string, 0, len(docs)+1)
	for _, d := range docs {
		keys = append(keys, blob.DocumentKey(studentID, recordID, d.Kind.FileName()))
	}
	return append(keys, blob.DocumentKey(studentID, recordID, constants.DocQRCode.FileName()))
}

func (s *IssuanceService) qrPayload(recordID string) string {
	if base := strings.TrimRight(s.opts.PublicBaseURL, "/"); base != "" {
		return base + "/verify/" + recordID
	}
	return recordID
}

func (s *IssuanceService) writeLedger(ctx context.Context, studentID, recordID string) (string, error) {
	lctx, cancel := context.WithTimeout(ctx, s.opts.LedgerTimeout)
	defer cancel()

	start := time.Now()
	ref, err := s.ledger.Write(lctx, studentID, recordID)
	metrics.LedgerWriteSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty reference", ledger.ErrRejected)
	}
	return ref, nil
}

// recordOrphans is best effort: a failure here only delays cleanup.
func (s *IssuanceService) recordOrphans(ctx context.Context, studentID, recordID string, keys []string, reason string) {
	if len(keys) == 0 {
		return
	}
	orphans := make([]model.OrphanedDocumentModel, 0, len(keys))
	for _, k := range keys {
		orphans = append(orphans, model.OrphanedDocumentModel{
			OrphanObjectKey: k,
			OrphanStudentID: studentID,
			OrphanRecordID:  recordID,
			OrphanReason:    reason,
		})
	}
	if err := s.store.AddOrphans(context.WithoutCancel(ctx), orphans); err != nil {
		log.Printf("[ISSUE] ⚠️ could not record %d orphaned objects for record=%s: %v", len(keys), recordID, err)
	}
}

func issuanceOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeIssued
	}
	switch apperror.KindOf(err) {
	case apperror.KindConflict:
		return metrics.OutcomeConflict
	case apperror.KindInvalidInput, apperror.KindNotFound:
		return metrics.OutcomeInvalid
	case apperror.KindLedgerUnavailable:
		return metrics.OutcomeLedgerUnavailable
	default:
		return metrics.OutcomeError
	}
}
