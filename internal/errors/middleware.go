// This file implements error handling middleware for Gin.
package errors

import (
	"net/http"

	"github.com/emberhall/ember/internal/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandler converts AppError (or any error) attached via c.Error into a
// consistent JSON response, logging 5xx at error level and 4xx at warn.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		if appErr, ok := err.Err.(*AppError); ok {
			if appErr.StatusCode >= 500 {
				logger.HTTP().Error().Str("kind", appErr.Kind).Str("details", appErr.Details).Msg(appErr.Message)
			} else {
				logger.HTTP().Warn().Str("kind", appErr.Kind).Msg(appErr.Message)
			}
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			return
		}

		logger.HTTP().Error().Err(err.Err).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "an internal error occurred",
		})
	}
}

// Recovery recovers from panics in handlers, returning a generic 500
// instead of taking down the whole server.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP().Error().Interface("panic", r).Msg("recovered from panic")
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Code:    http.StatusInternalServerError,
					Message: "an internal error occurred",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// HandleError is a helper for handlers that already have an error value.
func HandleError(c *gin.Context, err error) {
	if appErr, ok := err.(*AppError); ok {
		c.Error(appErr)
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}
	internalErr := Internal(err)
	c.Error(internalErr)
	c.JSON(internalErr.StatusCode, internalErr.ToResponse())
}

// AbortWithError aborts the request immediately with the given error.
func AbortWithError(c *gin.Context, err *AppError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
