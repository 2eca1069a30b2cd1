package middleware

import "time"

// Rate limiting constants (§4.E login/register/reissue, §4.I voice join).
const (
	// MaxLoginAttempts bounds /auth/login attempts per client IP before a
	// 429, the brute-force-credential-stuffing guard the spec's auth
	// surface otherwise has none of.
	MaxLoginAttempts     = 5
	LoginRateLimitWindow = 1 * time.Minute

	// MaxRegisterAttempts bounds /auth/register, looser than login since
	// registration has no password-guessing payoff but still needs a cap
	// against automated account-creation spam.
	MaxRegisterAttempts     = 10
	RegisterRateLimitWindow = 10 * time.Minute

	// MaxReissueAttempts bounds /auth/reissue per IP: a burned refresh
	// token (spec §8 scenario 3) must not be retried in a tight loop.
	MaxReissueAttempts     = 20
	ReissueRateLimitWindow = 1 * time.Minute

	// MaxVoiceJoinAttempts bounds join_vc (§4.I) per user id so a
	// misbehaving client can't hammer the worker pool with join churn.
	MaxVoiceJoinAttempts     = 10
	VoiceJoinRateLimitWindow = 1 * time.Minute

	// CleanupInterval is how often RateLimiter evicts idle keys.
	CleanupInterval = 5 * time.Minute

	// CleanupThreshold is the idle age past which a key is evicted.
	CleanupThreshold = 10 * time.Minute
)
