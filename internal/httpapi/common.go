package httpapi

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/emberhall/ember/internal/errors"
)

func respondErr(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}

func asAppError(err error) *apperrors.AppError {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	return apperrors.Internal(err)
}
