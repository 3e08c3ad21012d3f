// file: internals/features/certificates/records/dto/issue_dto.go
package dto

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	model "srms_backend/internals/features/certificates/records/model"
)

/* =========================
   Multipart metadata
   ========================= */

// IssueForm holds the non-file multipart fields of an issuance request.
type IssueForm struct {
	GraduationYear string `form:"graduationYear"`
	Percentage     string `form:"percentage"`
	Extra          string `form:"extra"`
}

type IssueMetadata struct {
	GraduationYear *int
	Percentage     *float64
	Extra          map[string]interface{}
}

func (f *IssueForm) Normalize() {
	f.GraduationYear = strings.TrimSpace(f.GraduationYear)
	f.Percentage = strings.TrimSpace(f.Percentage)
	f.Extra = strings.TrimSpace(f.Extra)
}

// ToMetadata parses the form. Error messages are safe to return to clients.
func (f *IssueForm) ToMetadata() (IssueMetadata, error) {
	var out IssueMetadata

	if f.GraduationYear != "" {
		y, err := strconv.Atoi(f.GraduationYear)
		if err != nil {
			return out, fieldError("graduationYear must be an integer")
		}
		out.GraduationYear = &y
	}
	if f.Percentage != "" {
		p, err := strconv.ParseFloat(f.Percentage, 64)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			return out, fieldError("percentage must be a number")
		}
		out.Percentage = &p
	}
	if f.Extra != "" {
		var m map[string]interface{}
		if err := sonic.UnmarshalString(f.Extra, &m); err != nil {
			return out, fieldError("extra must be a JSON object")
		}
		out.Extra = m
	}
	return out, nil
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

/* =========================
   Responses
   ========================= */

type DocumentResponse struct {
	Kind        string `json:"kind"`
	Position    int    `json:"position"`
	Fingerprint string `json:"fingerprint"`
	CID         string `json:"cid,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// RecordResponse is the record as shown to admins and to its owner.
type RecordResponse struct {
	RecordID        string                 `json:"record_id"`
	Status          string                 `json:"status"`
	LedgerReference *string                `json:"ledger_reference,omitempty"`
	IssuedBy        string                 `json:"issued_by"`
	IssuedAt        time.Time              `json:"issued_at"`
	GraduationYear  *int                   `json:"graduation_year,omitempty"`
	Percentage      *float64               `json:"percentage,omitempty"`
	Extra           map[string]interface{} `json:"extra,omitempty"`
	Documents       []DocumentResponse     `json:"documents"`
	Files           map[string]string      `json:"files"`
}

func ToRecordResponse(m *model.StudentRecordModel, publicBaseURL string) RecordResponse {
	docs := make([]DocumentResponse, 0, len(m.Documents))
	for _, d := range m.Documents {
		docs = append(docs, DocumentResponse{
			Kind:        d.DocumentKind,
			Position:    d.DocumentPosition,
			Fingerprint: d.DocumentFingerprint,
			CID:         d.DocumentCID,
			Size:        d.DocumentSize,
			ContentType: d.DocumentContentType,
		})
	}
	var extra map[string]interface{}
	if len(m.RecordExtra) > 0 {
		extra = map[string]interface{}(m.RecordExtra)
	}
	return RecordResponse{
		RecordID:        m.RecordID,
		Status:          string(m.RecordStatus),
		LedgerReference: m.RecordLedgerReference,
		IssuedBy:        m.RecordIssuedBy,
		IssuedAt:        m.RecordIssuedAt,
		GraduationYear:  m.RecordGraduationYear,
		Percentage:      m.RecordPercentage,
		Extra:           extra,
		Documents:       docs,
		Files:           FileLinks(publicBaseURL, m),
	}
}

func ToRecordResponses(rows []model.StudentRecordModel, publicBaseURL string) []RecordResponse {
	out := make([]RecordResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToRecordResponse(&rows[i], publicBaseURL))
	}
	return out
}

/* =========================
   Status update
   ========================= */

// UpdateStatusRequest carries only the target status. The ledger reference
// of an on-chain record always comes from the ledger write.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending verified on-chain"`
}

func (r *UpdateStatusRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}
