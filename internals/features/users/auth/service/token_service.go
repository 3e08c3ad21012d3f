// file: internals/features/users/auth/service/token_service.go
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const AccessTokenTTL = 24 * time.Hour

var (
	ErrMissingSecret = errors.New("auth: JWT secret is empty")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Claims carried by access tokens.
type Claims struct {
	UserID    string
	Role      string
	StudentID string // students only
	ExpiresAt time.Time
}

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = AccessTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *TokenService) Issue(userID, role, studentID string) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"id":   userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	if studentID != "" {
		claims["student_id"] = studentID
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Parse verifies signature, algorithm and expiry.
func (s *TokenService) Parse(raw string) (*Claims, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, _ := claims["id"].(string)
	role, _ := claims["role"].(string)
	if strings.TrimSpace(id) == "" || strings.TrimSpace(role) == "" {
		return nil, fmt.Errorf("%w: missing id or role", ErrInvalidToken)
	}
	out := &Claims{UserID: id, Role: role}
	out.StudentID, _ = claims["student_id"].(string)
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return out, nil
}
