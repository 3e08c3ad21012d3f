package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srms_backend/internals/constants"
	"srms_backend/internals/databases/testdb"
	studentModel "srms_backend/internals/features/students/students/model"
	"srms_backend/internals/helpers/apperror"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	tokens, err := NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	return NewAuthService(testdb.Open(t), tokens)
}

func TestTokenRoundTrip(t *testing.T) {
	tokens, err := NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	raw, exp, err := tokens.Issue("u-1", constants.RoleStudent, "S1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, constants.RoleStudent, claims.Role)
	assert.Equal(t, "S1", claims.StudentID)

	other, err := NewTokenService("other-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	tokens, err := NewTokenService("test-secret", time.Minute)
	require.NoError(t, err)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	raw, _, err := tokens.Issue("u-1", constants.RoleAdmin, "")
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenServiceNeedsSecret(t *testing.T) {
	_, err := NewTokenService("  ", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "correct horse"))
	assert.False(t, CheckPassword(h, "wrong horse"))
}

func TestLoginAdminAndStudent(t *testing.T) {
	s := newAuth(t)
	ctx := context.Background()

	_, err := s.SeedAdmin(ctx, "Registrar@Example.edu", "Registrar", "super-secret")
	require.NoError(t, err)

	res, err := s.Login(ctx, "registrar@example.edu", "super-secret")
	require.NoError(t, err)
	assert.Equal(t, constants.RoleAdmin, res.Role)
	assert.Empty(t, res.StudentID)

	_, err = s.Login(ctx, "registrar@example.edu", "nope-nope")
	assert.ErrorIs(t, err, ErrBadCredentials)

	hash, err := HashPassword("student-pass")
	require.NoError(t, err)
	email := "s1@example.edu"
	require.NoError(t, s.DB.Create(&studentModel.StudentModel{
		StudentID: "S1", StudentName: "Ada", StudentEmail: &email, StudentPasswordHash: &hash,
	}).Error)

	res, err = s.Login(ctx, "s1@example.edu", "student-pass")
	require.NoError(t, err)
	assert.Equal(t, constants.RoleStudent, res.Role)
	assert.Equal(t, "S1", res.StudentID)

	claims, err := s.Tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "S1", claims.StudentID)

	_, err = s.Login(ctx, "ghost@example.edu", "whatever1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = s.Login(ctx, "", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestSeedAdminResetsPassword(t *testing.T) {
	s := newAuth(t)
	ctx := context.Background()

	first, err := s.SeedAdmin(ctx, "a@example.edu", "A", "password-1")
	require.NoError(t, err)
	second, err := s.SeedAdmin(ctx, "a@example.edu", "A2", "password-2")
	require.NoError(t, err)
	assert.Equal(t, first.AdminID, second.AdminID)
	assert.Equal(t, "A2", second.AdminName)

	_, err = s.Login(ctx, "a@example.edu", "password-2")
	require.NoError(t, err)
}

func TestLogoutRevokes(t *testing.T) {
	s := newAuth(t)
	ctx := context.Background()

	raw, _, err := s.Tokens.Issue("u-1", constants.RoleAdmin, "")
	require.NoError(t, err)

	revoked, err := s.IsRevoked(ctx, raw)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Logout(ctx, raw))
	require.NoError(t, s.Logout(ctx, raw), "logout twice is fine")

	revoked, err = s.IsRevoked(ctx, raw)
	require.NoError(t, err)
	assert.True(t, revoked)
}
