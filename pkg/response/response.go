package response

import (
	"errors"
	"fmt"
	"net/http"

	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/logger"
	"anoa.com/lmsforum/pkg/ratelimiter"
	"anoa.com/lmsforum/pkg/validator"
	"github.com/gin-gonic/gin"
)

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	var rateLimitErr *ratelimiter.RateLimitError
	if errors.As(err, &rateLimitErr) {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rateLimitErr.RetryAfter.Seconds()))
	}

	code := apperror.MapErrorToStatus(err)

	// Internal errors are logged, never echoed
	if code == http.StatusInternalServerError {
		logger.L().Errorw("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"action", c.Query("action"),
			"error", err,
		)
		c.AbortWithStatusJSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}

	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// BindError reports a request binding/validation failure as 400.
func BindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
}

// Success writes {"success": true} merged with the given fields.
func Success(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
