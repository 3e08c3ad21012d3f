package controller_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srms_backend/internals/constants"
	"srms_backend/internals/databases/testdb"
	"srms_backend/internals/features/certificates/ledger"
	"srms_backend/internals/features/certificates/records/controller"
	model "srms_backend/internals/features/certificates/records/model"
	"srms_backend/internals/features/certificates/records/repository"
	"srms_backend/internals/features/certificates/records/route"
	"srms_backend/internals/features/certificates/records/service"
	studentModel "srms_backend/internals/features/students/students/model"
	authService "srms_backend/internals/features/users/auth/service"
	"srms_backend/internals/helpers/blob"
	authMiddleware "srms_backend/internals/middlewares/auth"
)

type envelope struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	ErrorCode string                 `json:"error_code"`
	Data      map[string]interface{} `json:"data"`
}

type harness struct {
	app     *fiber.App
	store   *repository.RecordStore
	ledger  *ledger.MemoryLedger
	admin   string
	student string
	other   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testdb.Open(t)
	require.NoError(t, db.Create(&studentModel.StudentModel{StudentID: "S1", StudentName: "Ada"}).Error)
	require.NoError(t, db.Create(&studentModel.StudentModel{StudentID: "S2", StudentName: "Grace"}).Error)

	store := repository.NewRecordStore(db)
	blobs := blob.NewMemoryStore()
	l := ledger.NewMemoryLedger()
	issuer := service.NewIssuanceService(store, blobs, l, service.IssuanceOptions{LedgerTimeout: time.Second})
	verifier := service.NewVerificationService(store, l, "", time.Second)

	tokens, err := authService.NewTokenService("ctl-secret", time.Hour)
	require.NoError(t, err)

	app := fiber.New()
	api := app.Group("/api")
	route.RecordRoutes(api,
		controller.NewRecordController(issuer, verifier, store, "", 1<<20),
		controller.NewFileController(service.NewFileService(store, blobs)),
		authMiddleware.AuthMiddleware(tokens, nil),
	)

	h := &harness{app: app, store: store, ledger: l}
	h.admin, _, err = tokens.Issue("admin-1", constants.RoleAdmin, "")
	require.NoError(t, err)
	h.student, _, err = tokens.Issue("stu-1", constants.RoleStudent, "S1")
	require.NoError(t, err)
	h.other, _, err = tokens.Issue("stu-2", constants.RoleStudent, "S2")
	require.NoError(t, err)
	return h
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := w.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (h *harness) do(t *testing.T, req *http.Request, token string) (*http.Response, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func decode(t *testing.T, raw []byte) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, sonic.Unmarshal(raw, &e), string(raw))
	return e
}

func (h *harness) issue(t *testing.T, studentID string, files map[string]string, token string) (*http.Response, envelope) {
	body, ct := multipartBody(t, files, map[string]string{"graduationYear": "2024", "percentage": "91.5", "extra": `{"honours":"first"}`})
	req := httptest.NewRequest("POST", "/api/students/"+studentID+"/issue", body)
	req.Header.Set("Content-Type", ct)
	resp, raw := h.do(t, req, token)
	return resp, decode(t, raw)
}

func (h *harness) verify(t *testing.T, payload string) (*http.Response, envelope) {
	req := httptest.NewRequest("POST", "/api/students/verify", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, raw := h.do(t, req, "")
	return resp, decode(t, raw)
}

var threeDocs = map[string]string{"certificate": "%PDF-1.4 cert", "reportCard": "%PDF-1.4 report", "photo": "photo-bytes"}

func TestIssueAndVerifyOverHTTP(t *testing.T) {
	h := newHarness(t)

	resp, env := h.issue(t, "S1", threeDocs, h.admin)
	require.Equal(t, 201, resp.StatusCode, env.Message)
	recordID, _ := env.Data["record_id"].(string)
	require.Len(t, recordID, 64)
	assert.NotEmpty(t, env.Data["ledger_reference"])

	resp, env = h.issue(t, "S1", threeDocs, h.admin)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "CONFLICT", env.ErrorCode)

	resp, env = h.verify(t, `{"recordId":"`+recordID+`","confirmOnChain":true}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, env.Data["valid"])
	assert.Equal(t, true, env.Data["chain_confirmed"])

	resp, env = h.verify(t, `{"recordId":"`+strings.Repeat("0", 64)+`"}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, false, env.Data["valid"])

	resp, _ = h.verify(t, `{}`)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestIssueErrors(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.issue(t, "S1", threeDocs, h.student)
	assert.Equal(t, 403, resp.StatusCode)

	resp, _ = h.issue(t, "S1", threeDocs, "")
	assert.Equal(t, 401, resp.StatusCode)

	resp, env := h.issue(t, "nobody", threeDocs, h.admin)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)

	// an unknown student is reported before the form is looked at
	body, ct := multipartBody(t, map[string]string{"certificate": "a"}, map[string]string{"percentage": "abc"})
	req := httptest.NewRequest("POST", "/api/students/nobody/issue", body)
	req.Header.Set("Content-Type", ct)
	resp, raw := h.do(t, req, h.admin)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode(t, raw).ErrorCode)

	body, ct = multipartBody(t, threeDocs, map[string]string{"percentage": "abc"})
	req = httptest.NewRequest("POST", "/api/students/S1/issue", body)
	req.Header.Set("Content-Type", ct)
	resp, _ = h.do(t, req, h.admin)
	assert.Equal(t, 400, resp.StatusCode)

	resp, env = h.issue(t, "S1", map[string]string{"certificate": "a", "photo": "c"}, h.admin)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", env.ErrorCode)

	h.ledger.SetFail(ledger.ErrUnavailable)
	resp, env = h.issue(t, "S1", threeDocs, h.admin)
	assert.Equal(t, 502, resp.StatusCode)
	assert.Equal(t, "LEDGER_UNAVAILABLE", env.ErrorCode)
}

func TestFilesOverHTTP(t *testing.T) {
	h := newHarness(t)

	resp, env := h.issue(t, "S1", threeDocs, h.admin)
	require.Equal(t, 201, resp.StatusCode)
	recordID := env.Data["record_id"].(string)

	resp, raw := h.do(t, httptest.NewRequest("GET", "/api/files/certificate/"+recordID, nil), h.student)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "%PDF-1.4 cert", string(raw))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "inline")

	resp, _ = h.do(t, httptest.NewRequest("GET", "/api/files/qr/"+recordID, nil), h.admin)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, _ = h.do(t, httptest.NewRequest("GET", "/api/files/report/"+recordID, nil), h.other)
	assert.Equal(t, 403, resp.StatusCode)

	resp, _ = h.do(t, httptest.NewRequest("GET", "/api/files/diploma/"+recordID, nil), h.admin)
	assert.Equal(t, 404, resp.StatusCode)

	resp, _ = h.do(t, httptest.NewRequest("GET", "/api/files/photo/"+strings.Repeat("0", 64), nil), h.admin)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestVerifyDocumentsOverHTTP(t *testing.T) {
	h := newHarness(t)

	resp, env := h.issue(t, "S1", threeDocs, h.admin)
	require.Equal(t, 201, resp.StatusCode)
	recordID := env.Data["record_id"].(string)

	body, ct := multipartBody(t, threeDocs, nil)
	req := httptest.NewRequest("POST", "/api/students/S1/verify-documents", body)
	req.Header.Set("Content-Type", ct)
	resp, raw := h.do(t, req, "")
	require.Equal(t, 200, resp.StatusCode)
	env = decode(t, raw)
	assert.Equal(t, true, env.Data["valid"])
	assert.Equal(t, recordID, env.Data["record_id"])
}

func TestUpdateStatusAndAttestations(t *testing.T) {
	h := newHarness(t)

	resp, env := h.issue(t, "S1", threeDocs, h.admin)
	require.Equal(t, 201, resp.StatusCode)
	recordID := env.Data["record_id"].(string)

	req := httptest.NewRequest("PATCH", "/api/students/S1/records/"+recordID+"/status", strings.NewReader(`{"status":"pending"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = h.do(t, req, h.admin)
	assert.Equal(t, 400, resp.StatusCode, "cannot move backwards")

	req = httptest.NewRequest("PATCH", "/api/students/S1/records/"+recordID+"/status", strings.NewReader(`{"status":"archived"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = h.do(t, req, h.admin)
	assert.Equal(t, 400, resp.StatusCode)

	resp, raw := h.do(t, httptest.NewRequest("GET", "/api/students/S1/attestations", nil), h.admin)
	require.Equal(t, 200, resp.StatusCode)
	var list struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, sonic.Unmarshal(raw, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, recordID, list.Data[0]["record_id"])
	assert.Equal(t, true, list.Data[0]["in_store"])
}

func (h *harness) patchStatus(t *testing.T, recordID, payload string) (*http.Response, envelope) {
	req := httptest.NewRequest("PATCH", "/api/students/S1/records/"+recordID+"/status", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, raw := h.do(t, req, h.admin)
	return resp, decode(t, raw)
}

func TestPromoteToOnChainWritesLedger(t *testing.T) {
	h := newHarness(t)
	recordID := strings.Repeat("ab", 32)
	require.NoError(t, h.store.AppendRecord(context.Background(), "S1", &model.StudentRecordModel{
		RecordID:       recordID,
		RecordStatus:   model.StatusPending,
		RecordIssuedBy: "admin-1",
		RecordIssuedAt: time.Now().UTC(),
	}))

	h.ledger.SetFail(ledger.ErrUnavailable)
	resp, env := h.patchStatus(t, recordID, `{"status":"on-chain","ledgerReference":"0xforged"}`)
	assert.Equal(t, 502, resp.StatusCode)
	assert.Equal(t, "LEDGER_UNAVAILABLE", env.ErrorCode)

	resp, env = h.verify(t, `{"recordId":"`+recordID+`"}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, false, env.Data["valid"])

	h.ledger.SetFail(nil)
	resp, env = h.patchStatus(t, recordID, `{"status":"on-chain","ledgerReference":"0xforged"}`)
	require.Equal(t, 200, resp.StatusCode, env.Message)
	assert.Equal(t, "on-chain", env.Data["status"])
	assert.NotEqual(t, "0xforged", env.Data["ledger_reference"])
	assert.Equal(t, 1, h.ledger.Writes())

	resp, env = h.verify(t, `{"recordId":"`+recordID+`","confirmOnChain":true}`)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, env.Data["valid"])
	assert.Equal(t, true, env.Data["chain_confirmed"])
}
