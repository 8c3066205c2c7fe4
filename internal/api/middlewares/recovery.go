package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"election-system/internal/api/models"
	"election-system/pkg/logger"
)

// Recovery converts panics into opaque 500 responses and logs the stack.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered - path: %s, error: %v\n%s", c.Request.URL.Path, r, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.Fail(
					models.NewAPIError(models.ErrCodeInternalError, "internal server error", http.StatusInternalServerError)))
			}
		}()
		c.Next()
	}
}
