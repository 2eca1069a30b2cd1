// This file implements the Reissue protocol (§4.E step 1-4): validate the
// presented refresh token's wire format, atomically delete-and-replace its
// persisted row, and mint a new access+refresh pair. A refresh token is
// single-use — RotateRefreshToken's delete-then-insert happens in one
// transaction (internal/db.Database.RotateRefreshToken) so two concurrent
// Reissue calls with the same token can't both succeed.
package auth

import (
	"context"
	"time"

	"github.com/emberhall/ember/internal/cache"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/nanoid"
)

// Store is the subset of db.Store the refresh flow needs, kept narrow so
// this package doesn't import internal/db directly.
type Store interface {
	RotateRefreshToken(ctx context.Context, userID, nonce string, replacement *models.RefreshTokenRow) (int, error)
	InsertRefreshToken(ctx context.Context, row *models.RefreshTokenRow) error
	DeleteAllRefreshTokensForUser(ctx context.Context, userID string) error
}

type RefreshService struct {
	tokens        *TokenService
	store         Store
	cache         *cache.Cache
	accessTTL     time.Duration
	refreshTTL    time.Duration
	botRefreshTTL time.Duration
}

func NewRefreshService(tokens *TokenService, store Store, accessTTL, refreshTTL, botRefreshTTL time.Duration) *RefreshService {
	return &RefreshService{
		tokens:        tokens,
		store:         store,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		botRefreshTTL: botRefreshTTL,
	}
}

// WithCache attaches a cache used to short-circuit a redeemed refresh token
// before it ever reaches the database (§4.E step 3, §8 invariant 5). Nil or
// a disabled cache leaves Reissue relying solely on RotateRefreshToken's own
// atomicity, so this is an optimization, not a correctness requirement.
func (r *RefreshService) WithCache(c *cache.Cache) *RefreshService {
	r.cache = c
	return r
}

// TokenPair is what login and reissue both return to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (r *RefreshService) refreshTTLFor(userID string) time.Duration {
	if models.IsBot(userID) {
		return r.botRefreshTTL
	}
	return r.refreshTTL
}

// Issue mints a fresh access+refresh pair on login, persisting the refresh
// token's nonce row. userAgent is stored for audit/display only.
func (r *RefreshService) Issue(ctx context.Context, userID, userAgent string) (*TokenPair, error) {
	now := time.Now()
	access := r.tokens.IssueAccess(userID, now.Add(r.accessTTL))

	nonce := nanoid.MustGenerate(32)
	refreshExpiry := now.Add(r.refreshTTLFor(userID))
	refresh := BuildRefresh(userID, refreshExpiry, nonce)

	if err := r.store.InsertRefreshToken(ctx, &models.RefreshTokenRow{
		UserID:    userID,
		TokenID:   nanoid.Identity(),
		Nonce:     nonce,
		ExpiresAt: refreshExpiry,
		UserAgent: userAgent,
	}); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Reissue implements §4.E's Reissue protocol:
//  1. Parse the presented refresh token's wire format and reject it if its
//     own expiry has passed (bot tokens included).
//  2. Bot tokens are non-rotating: mint a fresh access token and hand back
//     the same refresh token unchanged, skipping the DB round trip entirely.
//  3. Otherwise, atomically replace the (user_id, nonce) row with a new one; zero rows affected
//     means the token was already redeemed or never existed.
//  4. Mint a new access token alongside the rotated refresh token.
func (r *RefreshService) Reissue(ctx context.Context, presented, userAgent string) (*TokenPair, error) {
	userID, expiresAt, nonce, err := ParseRefresh(presented)
	if err != nil {
		return nil, err
	}
	if time.Now().After(expiresAt) {
		return nil, apperrors.TokenExpired()
	}

	if models.IsBot(userID) {
		access := r.tokens.IssueAccess(userID, time.Now().Add(r.accessTTL))
		return &TokenPair{AccessToken: access, RefreshToken: presented}, nil
	}

	if r.cache != nil && r.cache.IsEnabled() {
		claimed, err := r.cache.SetNX(ctx, cache.RefreshNonceKey(userID, nonce), true, r.refreshTTLFor(userID))
		if err == nil && !claimed {
			return nil, apperrors.Authz("refresh token already used or expired")
		}
	}

	now := time.Now()
	newNonce := nanoid.MustGenerate(32)
	newExpiry := now.Add(r.refreshTTLFor(userID))

	replacement := &models.RefreshTokenRow{
		UserID:    userID,
		TokenID:   nanoid.Identity(),
		Nonce:     newNonce,
		ExpiresAt: newExpiry,
		UserAgent: userAgent,
	}

	rowsAffected, err := r.store.RotateRefreshToken(ctx, userID, nonce, replacement)
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, apperrors.Authz("refresh token already used or expired")
	}

	access := r.tokens.IssueAccess(userID, now.Add(r.accessTTL))
	refresh := BuildRefresh(userID, newExpiry, newNonce)

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RevokeAll invalidates every refresh token belonging to userID, used on
// password change or explicit "log out everywhere" (§9: bot tokens are the
// one exception — they never rotate and are revoked by the bot owner only).
func (r *RefreshService) RevokeAll(ctx context.Context, userID string) error {
	return r.store.DeleteAllRefreshTokensForUser(ctx, userID)
}
