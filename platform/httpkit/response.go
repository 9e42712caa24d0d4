package httpkit

import (
	"errors"
	"net/http"

	"marketpilot/platform/apperr"

	"github.com/gin-gonic/gin"
)

// OK writes a 200 response with the given payload.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Error maps a domain error to an HTTP response. apperr kinds carry their own
// status; anything else is a 500 with a generic message.
func Error(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
