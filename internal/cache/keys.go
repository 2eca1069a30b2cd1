// This file defines standardized cache key naming conventions and patterns
// for the core's cross-instance caches, grounded on the teacher's
// internal/cache/keys.go prefix:resource:identifier convention.
//
// Key Naming Convention:
//   - Format: {prefix}:{resource}:{identifier}
//   - Example: user:alice
//   - Example: refresh_nonce:user123:abc...
package cache

import "fmt"

// Key prefixes for different resource types.
const (
	PrefixUser         = "user"
	PrefixRefreshNonce = "refresh_nonce"
	PrefixVoicePeers   = "voice_peers"
	PrefixDMChannel    = "dm_channel"
	PrefixGuildMember  = "guild_member"
)

// UserKey caches a user row looked up by id.
func UserKey(userID string) string {
	return fmt.Sprintf("%s:%s", PrefixUser, userID)
}

func UserByUsernameKey(username string) string {
	return fmt.Sprintf("%s:username:%s", PrefixUser, username)
}

// RefreshNonceKey marks a (userID, nonce) pair as already redeemed, closing
// the race window between RotateRefreshToken's delete and a concurrent
// reissue attempt presenting the same token (§4.E step 3, §8 invariant 5).
func RefreshNonceKey(userID, nonce string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixRefreshNonce, userID, nonce)
}

// VoicePeersKey caches the peer list for a voice channel so /peers doesn't
// need a registry scan on every poll (§4.I).
func VoicePeersKey(channelID string) string {
	return fmt.Sprintf("%s:%s", PrefixVoicePeers, channelID)
}

// DMChannelKey caches the canonical DM channel id for a user pair.
func DMChannelKey(userA, userB string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixDMChannel, userA, userB)
}

// GuildMemberKey caches an is-member lookup for authorization checks.
func GuildMemberKey(guildID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixGuildMember, guildID, userID)
}

// UserPattern invalidates every cache entry scoped to a user.
func UserPattern(userID string) string {
	return fmt.Sprintf("*:%s*", userID)
}

// GuildMemberPattern invalidates every membership cache entry for a guild,
// used when roles change in bulk.
func GuildMemberPattern(guildID string) string {
	return fmt.Sprintf("%s:%s:*", PrefixGuildMember, guildID)
}
