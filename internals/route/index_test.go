package routes

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

	"srms_backend/internals/databases/testdb"
	"srms_backend/internals/features/certificates/ledger"
	authService "srms_backend/internals/features/users/auth/service"
	"srms_backend/internals/helpers/blob"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

type server struct {
	app *fiber.App
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testdb.Open(t)
	tokens, err := authService.NewTokenService("routes-secret", time.Hour)
	require.NoError(t, err)

	_, err = authService.NewAuthService(db, tokens).SeedAdmin(context.Background(), "registrar@uni.edu", "Registrar", "registrar-pass")
	require.NoError(t, err)

	app := fiber.New()
	SetupRoutes(app, Deps{
		DB:            db,
		Blobs:         blob.NewMemoryStore(),
		Ledger:        ledger.NewMemoryLedger(),
		Tokens:        tokens,
		PublicBaseURL: "https://records.uni.edu",
		LedgerTimeout: time.Second,
		MaxFileBytes:  1 << 20,
	})
	return &server{app: app}
}

func (s *server) send(t *testing.T, req *http.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var env envelope
	require.NoError(t, sonic.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = s.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestIssuanceFlow(t *testing.T) {
	s := newServer(t)

	status, env := s.send(t, jsonRequest("POST", "/api/auth/login", `{"email":"registrar@uni.edu","password":"registrar-pass"}`), "")
	require.Equal(t, 200, status, env.Message)
	admin := env.Data["token"].(string)

	status, env = s.send(t, jsonRequest("POST", "/api/students", `{"student_id":"CS-001","name":"Ada","email":"ada@uni.edu","password":"ada-password"}`), admin)
	require.Equal(t, 201, status, env.Message)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, content := range map[string]string{"certificate": "%PDF-1.4 cert", "reportCard": "%PDF-1.4 rc", "photo": "img"} {
		fw, err := w.CreateFormFile(field, field+".pdf")
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest("POST", "/api/students/CS-001/issue", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	status, env = s.send(t, req, admin)
	require.Equal(t, 201, status, env.Message)
	recordID := env.Data["record_id"].(string)

	// public verification needs no token
	status, env = s.send(t, jsonRequest("POST", "/api/students/verify", `{"recordId":"`+recordID+`"}`), "")
	require.Equal(t, 200, status)
	assert.Equal(t, true, env.Data["valid"])

	// the student can log in and read their own profile
	status, env = s.send(t, jsonRequest("POST", "/api/auth/login", `{"email":"ada@uni.edu","password":"ada-password"}`), "")
	require.Equal(t, 200, status, env.Message)
	student := env.Data["token"].(string)

	status, env = s.send(t, httptest.NewRequest("GET", "/api/students/CS-001", nil), student)
	require.Equal(t, 200, status)
	assert.Len(t, env.Data["records"], 1)

	// issuance stays admin-only
	status, _ = s.send(t, httptest.NewRequest("GET", "/api/students/CS-001/attestations", nil), student)
	assert.Equal(t, 403, status)

	status, _ = s.send(t, jsonRequest("POST", "/api/auth/logout", `{}`), student)
	require.Equal(t, 200, status)
	status, _ = s.send(t, httptest.NewRequest("GET", "/api/auth/me", nil), student)
	assert.Equal(t, 401, status)
}
