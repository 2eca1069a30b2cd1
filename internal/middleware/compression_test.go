package middleware

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// TestGzip_RoundTrip asserts that a response written behind Gzip decodes
// back to the exact JSON body the handler wrote, for both the pooled
// DefaultCompression writer and a level-override writer (the path that
// used to flush an empty gzip stream ahead of the real payload).
func TestGzip_RoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)

	levels := []struct {
		name  string
		level int
	}{
		{"DefaultCompression", DefaultCompression},
		{"BestSpeed", BestSpeed},
		{"LevelFive", 5},
	}

	for _, tt := range levels {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Gzip(tt.level))
			router.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"hello": "world"})
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

			reader, err := gzip.NewReader(w.Body)
			require.NoError(t, err, "body must be a well-formed gzip stream with no leading empty block")
			defer reader.Close()

			decoded, err := io.ReadAll(reader)
			require.NoError(t, err)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(decoded, &payload))
			require.Equal(t, "world", payload["hello"])
		})
	}
}

// TestGzip_SkipsNonCompressibleRequests asserts that a client without
// Accept-Encoding: gzip gets a plain, uncompressed body.
func TestGzip_SkipsNonCompressibleRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Gzip(DefaultCompression))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"hello": "world"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Empty(t, w.Header().Get("Content-Encoding"))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "world", payload["hello"])
}
