package utils

import (
	"errors"

	"inksnap-backend/apperrors"

	"github.com/gin-gonic/gin"
)

func RespondWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// RespondWithAppError maps an error to its status and a short description.
func RespondWithAppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		RespondWithError(c, 500, "Internal server error")
		return
	}
	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if appErr.Status != 0 {
		body["status"] = appErr.Status
	}
	c.AbortWithStatusJSON(appErr.Code.HTTPStatus(), body)
}
