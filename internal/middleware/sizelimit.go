package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Request body size limits. This core has no file-upload feature (spec
// Non-goals), so the limits are sized around the two shapes of JSON body
// it actually accepts: auth/message/friend payloads, and the larger SDP
// offer/ICE-candidate blobs the voice transport-create/connect endpoints
// exchange (§4.I).
const (
	// MaxRequestBodySize bounds any request this server doesn't special-case.
	MaxRequestBodySize int64 = 1 * 1024 * 1024 // 1 MB

	// MaxJSONPayloadSize bounds auth/message/friend JSON bodies (§4.C, §4.E).
	MaxJSONPayloadSize int64 = 256 * 1024 // 256 KB

	// MaxSignalingPayloadSize bounds voice transport-create/connect bodies
	// (§4.I), which carry a full SDP offer/answer plus ICE candidates and
	// run noticeably larger than a chat message.
	MaxSignalingPayloadSize int64 = 1 * 1024 * 1024 // 1 MB
)

// RequestSizeLimiter caps the size of an incoming HTTP request body so a
// client can't exhaust server memory with an oversized payload.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":       "request entity too large",
				"max_size_mb": float64(maxSize) / (1024 * 1024),
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// JSONSizeLimiter limits auth/message/friend JSON endpoint bodies.
func JSONSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxJSONPayloadSize)
}

// SignalingSizeLimiter limits voice transport-create/connect bodies, which
// carry SDP and ICE-candidate data rather than a small JSON object.
func SignalingSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxSignalingPayloadSize)
}

// DefaultSizeLimiter uses the default max request body size.
func DefaultSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxRequestBodySize)
}
