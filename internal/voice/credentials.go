// This file implements the RTC credential extractor (§4.H, §4.I):
// RTC-Identity/RTC-Token headers for ordinary voice HTTP calls, or ?i=&t=
// query parameters for the voice event WS upgrade, with constant-time
// token comparison.
package voice

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/emberhall/ember/internal/errors"
)

// TransportDirection selects which of a client's two transports an
// operation targets (§4.H: "at most one send (c2s) and one recv (s2c) per
// client").
type TransportDirection string

const (
	DirectionSend TransportDirection = "send"
	DirectionRecv TransportDirection = "recv"
)

func ParseDirection(raw string) (TransportDirection, error) {
	switch TransportDirection(raw) {
	case DirectionSend, DirectionRecv:
		return TransportDirection(raw), nil
	default:
		return "", apperrors.Validation("type must be \"send\" or \"recv\"")
	}
}

// credentials is the (identity, token) pair every voice HTTP call presents.
type credentials struct {
	identity string
	token    string
}

func extractHeaderCredentials(c *gin.Context) (credentials, bool) {
	identity := c.GetHeader("RTC-Identity")
	token := c.GetHeader("RTC-Token")
	if identity == "" || token == "" {
		return credentials{}, false
	}
	return credentials{identity: identity, token: token}, true
}

func extractQueryCredentials(c *gin.Context) (credentials, bool) {
	identity := c.Query("i")
	token := c.Query("t")
	if identity == "" || token == "" {
		return credentials{}, false
	}
	return credentials{identity: identity, token: token}, true
}

// resolveRTCCredentials resolves the (identity, token) pair from the
// request (headers for ordinary calls, query params for the WS upgrade, per
// §4.H), looks up the client, and checks the token in constant time. It
// does NOT check the access token or the WS-connected requirement: the
// access token is checked by auth.RequireAuth and the WS-connected
// requirement by RequireVoiceSession, both mounted on every endpoint but
// the upgrade itself (§4.I).
func (m *Manager) resolveRTCCredentials(c *gin.Context, fromQuery bool) (*Client, error) {
	var creds credentials
	var ok bool
	if fromQuery {
		creds, ok = extractQueryCredentials(c)
	} else {
		creds, ok = extractHeaderCredentials(c)
	}
	if !ok {
		return nil, apperrors.Authn("missing rtc credentials")
	}

	client, found := m.lookupClient(creds.identity)
	if !found {
		return nil, apperrors.Authn("unknown rtc identity")
	}
	if !client.CheckToken(creds.token) {
		return nil, apperrors.Authn("rtc token mismatch")
	}
	return client, nil
}

const contextKeyVoiceClient = "voiceClient"

// RequireRTCCredentialsOnly validates RTC creds alone — used only for the
// voice event WS upgrade route (§4.I table).
func RequireRTCCredentialsOnly(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := m.resolveRTCCredentials(c, true)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(contextKeyVoiceClient, client)
		c.Next()
	}
}

// RequireVoiceSession validates the RTC creds (pinning the request to a
// specific voice session) and that the client's event WS has already
// connected. It does not check the bearer access token; RegisterRoutes
// mounts auth.RequireAuth ahead of it, so every voice endpoint except the
// WS upgrade itself requires all three (§4.I "Credential extractor").
func RequireVoiceSession(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := m.resolveRTCCredentials(c, false)
		if err != nil {
			appErr := err.(*apperrors.AppError)
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}
		if !client.IsConnected() {
			appErr := apperrors.Authn("voice session not connected")
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}
		c.Set(contextKeyVoiceClient, client)
		c.Next()
	}
}

// VoiceClientFromContext extracts the Client resolved by RequireVoiceSession
// or RequireRTCCredentialsOnly.
func VoiceClientFromContext(c *gin.Context) (*Client, bool) {
	v, ok := c.Get(contextKeyVoiceClient)
	if !ok {
		return nil, false
	}
	client, ok := v.(*Client)
	return client, ok
}
