// file: internals/features/certificates/records/dto/verify_dto.go
package dto

import (
	"strings"
	"time"
)

// Verification statuses that are not record statuses.
const (
	VerifyStatusNotFound   = "not-found"
	VerifyStatusNotOnChain = "not-on-chain"
)

/* =========================
   Request
   ========================= */

type VerifyRequest struct {
	RecordID       string `json:"recordId" validate:"required"`
	ConfirmOnChain bool   `json:"confirmOnChain"`
}

func (r *VerifyRequest) Normalize() {
	r.RecordID = strings.ToLower(strings.TrimSpace(r.RecordID))
}

/* =========================
   Result (public, minimal)
   ========================= */

type VerifiedStudent struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}

type VerifiedDocument struct {
	Kind        string `json:"kind"`
	Fingerprint string `json:"fingerprint"`
	CID         string `json:"cid,omitempty"`
}

type VerifiedRecord struct {
	RecordID        string             `json:"record_id"`
	Status          string             `json:"status"`
	GraduationYear  *int               `json:"graduation_year,omitempty"`
	Percentage      *float64           `json:"percentage,omitempty"`
	IssuedAt        time.Time          `json:"issued_at"`
	LedgerReference string             `json:"ledger_reference"`
	Documents       []VerifiedDocument `json:"documents"`
	Files           map[string]string  `json:"files"`
}

// VerificationResult never carries emails, password hashes or the student's
// other records.
type VerificationResult struct {
	Valid    bool             `json:"valid"`
	Status   string           `json:"status"`
	RecordID string           `json:"record_id,omitempty"`
	Student  *VerifiedStudent `json:"student,omitempty"`
	Record   *VerifiedRecord  `json:"record,omitempty"`

	ChainConfirmed *bool  `json:"chain_confirmed,omitempty"`
	ChainError     string `json:"chain_error,omitempty"`
}

func NotFoundResult(recordID string) *VerificationResult {
	return &VerificationResult{Valid: false, Status: VerifyStatusNotFound, RecordID: recordID}
}

/* =========================
   Attestations
   ========================= */

type AttestationResponse struct {
	RecordID   string     `json:"record_id"`
	Sequence   uint64     `json:"sequence,omitempty"`
	Reference  string     `json:"reference,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	InStore    bool       `json:"in_store"`
}
