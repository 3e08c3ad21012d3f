// file: internals/features/certificates/records/service/verification_service.go
package service

import (
	"context"
	"log"
	"strings"
	"time"

	"srms_backend/internals/constants"
	"srms_backend/internals/features/certificates/fingerprint"
	"srms_backend/internals/features/certificates/ledger"
	"srms_backend/internals/features/certificates/records/dto"
	model "srms_backend/internals/features/certificates/records/model"
	studentModel "srms_backend/internals/features/students/students/model"
	"srms_backend/internals/helpers/apperror"
	"srms_backend/internals/helpers/metrics"
)

type VerificationStore interface {
	FindStudent(ctx context.Context, studentID string) (*studentModel.StudentModel, error)
	FindStudentByRecordID(ctx context.Context, recordID string) (*studentModel.StudentModel, *model.StudentRecordModel, error)
	ListRecords(ctx context.Context, studentID string) ([]model.StudentRecordModel, error)
}

type VerifyOptions struct {
	ConfirmOnChain bool
}

// VerificationService answers public lookups. It never writes.
type VerificationService struct {
	store         VerificationStore
	ledger        ledger.Ledger
	publicBaseURL string
	ledgerTimeout time.Duration
}

func NewVerificationService(store VerificationStore, l ledger.Ledger, publicBaseURL string, ledgerTimeout time.Duration) *VerificationService {
	if ledgerTimeout <= 0 {
		ledgerTimeout = DefaultLedgerTimeout
	}
	return &VerificationService{store: store, ledger: l, publicBaseURL: publicBaseURL, ledgerTimeout: ledgerTimeout}
}

// Verify reports whether recordID names an on-chain record. "Not valid" is a
// result, not an error; only storage failures return an error.
func (s *VerificationService) Verify(ctx context.Context, recordID string, opts VerifyOptions) (*dto.VerificationResult, error) {
	recordID = strings.ToLower(strings.TrimSpace(recordID))
	if !fingerprint.IsHexDigest(recordID) {
		metrics.VerificationTotal.WithLabelValues(dto.VerifyStatusNotFound).Inc()
		return dto.NotFoundResult(recordID), nil
	}

	stu, rec, err := s.store.FindStudentByRecordID(ctx, recordID)
	if apperror.Is(err, apperror.KindNotFound) {
		metrics.VerificationTotal.WithLabelValues(dto.VerifyStatusNotFound).Inc()
		return dto.NotFoundResult(recordID), nil
	}
	if err != nil {
		return nil, err
	}

	if rec.RecordLedgerReference == nil || *rec.RecordLedgerReference == "" {
		metrics.VerificationTotal.WithLabelValues(dto.VerifyStatusNotOnChain).Inc()
		return &dto.VerificationResult{Valid: false, Status: dto.VerifyStatusNotOnChain, RecordID: recordID}, nil
	}

	out := &dto.VerificationResult{
		Valid:    true,
		Status:   string(rec.RecordStatus),
		RecordID: recordID,
		Student: &dto.VerifiedStudent{
			StudentID:  stu.StudentID,
			Name:       stu.StudentName,
			Department: stu.Department(),
		},
		Record: toVerifiedRecord(rec, s.publicBaseURL),
	}

	if opts.ConfirmOnChain {
		s.confirmOnChain(ctx, stu.StudentID, recordID, out)
	}
	metrics.VerificationTotal.WithLabelValues("valid").Inc()
	return out, nil
}

// VerifyDocuments re-derives the record id from the documents themselves.
func (s *VerificationService) VerifyDocuments(ctx context.Context, studentID string, docs map[constants.DocumentKind]Document, opts VerifyOptions) (*dto.VerificationResult, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, apperror.InvalidInput("student id is required")
	}
	_, fps, err := hashDocuments(docs)
	if err != nil {
		return nil, err
	}
	recordID, err := deriveRecordID(studentID, fps)
	if err != nil {
		return nil, err
	}
	return s.Verify(ctx, recordID, opts)
}

// Attestations reads the ledger for a student and marks which attestations
// have a matching record in the store.
func (s *VerificationService) Attestations(ctx context.Context, studentID string) ([]dto.AttestationResponse, error) {
	if _, err := s.store.FindStudent(ctx, studentID); err != nil {
		return nil, err
	}

	lctx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()
	atts, err := s.ledger.Read(lctx, studentID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindLedgerUnavailable, "ledger read failed", err)
	}

	recs, err := s.store.ListRecords(ctx, studentID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(recs))
	for _, r := range recs {
		known[r.RecordID] = true
	}

	out := make([]dto.AttestationResponse, 0, len(atts))
	for _, a := range atts {
		out = append(out, dto.AttestationResponse{
			RecordID:   a.RecordID,
			Sequence:   a.Sequence,
			Reference:  a.Reference,
			RecordedAt: a.RecordedAt,
			InStore:    known[a.RecordID],
		})
	}
	return out, nil
}

func (s *VerificationService) confirmOnChain(ctx context.Context, studentID, recordID string, out *dto.VerificationResult) {
	lctx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()

	confirmed := false
	atts, err := s.ledger.Read(lctx, studentID)
	if err != nil {
		log.Printf("[VERIFY] ⚠️ ledger read student=%s: %v", studentID, err)
		out.ChainError = "ledger unavailable"
	} else {
		confirmed = ledger.Contains(atts, recordID)
	}
	out.ChainConfirmed = &confirmed
}

func toVerifiedRecord(rec *model.StudentRecordModel, publicBaseURL string) *dto.VerifiedRecord {
	docs := make([]dto.VerifiedDocument, 0, len(rec.Documents))
	for _, d := range rec.Documents {
		docs = append(docs, dto.VerifiedDocument{
			Kind:        d.DocumentKind,
			Fingerprint: d.DocumentFingerprint,
			CID:         d.DocumentCID,
		})
	}
	return &dto.VerifiedRecord{
		RecordID:        rec.RecordID,
		Status:          string(rec.RecordStatus),
		GraduationYear:  rec.RecordGraduationYear,
		Percentage:      rec.RecordPercentage,
		IssuedAt:        rec.RecordIssuedAt,
		LedgerReference: *rec.RecordLedgerReference,
		Documents:       docs,
		Files:           dto.FileLinks(publicBaseURL, rec),
	}
}
