// Package auth implements the Token Service (§4.E): a custom bearer-token
// scheme, not standard JWT — no library in the retrieval pack's dependency
// graph models this shape, so it is hand-rolled from crypto/hmac the way
// the teacher hand-rolls its JWT signing in internal/auth/jwt.go, just with
// a simpler wire format that has no header/alg to substitute-attack.
//
// WIRE FORMAT (§3, §6):
//
//	user_id + "." + base64url(expiry) + "." + base64url(signature_or_nonce)
//
// Access tokens are stateless: the third segment is HMAC-SHA256 over the
// first two, so any instance holding AccessTokenSigningKey can verify one
// without a DB round trip. Refresh tokens carry a random nonce instead,
// checked against a persisted row (internal/db Store), so they can be
// revoked and rotate on every use.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"

	apperrors "github.com/emberhall/ember/internal/errors"
)

// TokenKind names the two token kinds; no code path reads it. Access and
// refresh tokens are kept apart by verification instead: VerifyAccess
// rejects any token without a valid HMAC signature, and a refresh token is
// honoured only while its nonce is stored (RefreshService.Reissue).
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is what a validated token resolves to.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
	Nonce     string // not set by VerifyAccess; ParseRefresh returns refresh nonces directly
}

// TokenService signs and verifies access tokens and validates the wire
// format of refresh tokens (the refresh nonce itself is checked against the
// database by internal/auth.RefreshService, not here).
type TokenService struct {
	signingKey []byte
}

func NewTokenService(signingKey string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey)}
}

func encodeExpiry(t time.Time) string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	return base64.RawURLEncoding.EncodeToString(buf)
}

func decodeExpiry(s string) (time.Time, error) {
	buf, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(buf) != 8 {
		return time.Time{}, apperrors.TokenInvalid()
	}
	return time.Unix(int64(binary.BigEndian.Uint64(buf)), 0), nil
}

func (s *TokenService) sign(userID, expirySegment string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(userID))
	mac.Write([]byte("."))
	mac.Write([]byte(expirySegment))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// IssueAccess mints a stateless access token valid until expiresAt.
func (s *TokenService) IssueAccess(userID string, expiresAt time.Time) string {
	expirySegment := encodeExpiry(expiresAt)
	sig := s.sign(userID, expirySegment)
	return userID + "." + expirySegment + "." + sig
}

// VerifyAccess checks signature and expiry, in that order: a tampered
// token is rejected before its (attacker-controlled) expiry is trusted.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	userID, expirySegment, sigSegment, err := splitToken(token)
	if err != nil {
		return nil, err
	}

	expected := s.sign(userID, expirySegment)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sigSegment)) != 1 {
		return nil, apperrors.TokenInvalid()
	}

	expiresAt, err := decodeExpiry(expirySegment)
	if err != nil {
		return nil, err
	}
	if time.Now().After(expiresAt) {
		return nil, apperrors.TokenExpired()
	}

	return &Claims{UserID: userID, ExpiresAt: expiresAt}, nil
}

// BuildRefresh assembles the wire format for a refresh token around a
// caller-supplied random nonce; the nonce's persistence is the caller's
// responsibility (internal/auth.RefreshService).
func BuildRefresh(userID string, expiresAt time.Time, nonce string) string {
	return userID + "." + encodeExpiry(expiresAt) + "." + base64.RawURLEncoding.EncodeToString([]byte(nonce))
}

// ParseRefresh splits a refresh token into its parts without touching the
// database; RefreshService.Reissue is what validates the nonce still exists.
func ParseRefresh(token string) (userID string, expiresAt time.Time, nonce string, err error) {
	userID, expirySegment, nonceSegment, err := splitToken(token)
	if err != nil {
		return "", time.Time{}, "", err
	}
	expiresAt, err = decodeExpiry(expirySegment)
	if err != nil {
		return "", time.Time{}, "", err
	}
	nonceBytes, err := base64.RawURLEncoding.DecodeString(nonceSegment)
	if err != nil {
		return "", time.Time{}, "", apperrors.TokenInvalid()
	}
	return userID, expiresAt, string(nonceBytes), nil
}

func splitToken(token string) (userID, expirySegment, lastSegment string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", "", "", apperrors.TokenInvalid()
	}
	if parts[0] == "" {
		return "", "", "", apperrors.TokenInvalid()
	}
	return parts[0], parts[1], parts[2], nil
}
