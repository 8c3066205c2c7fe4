package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"election-system/internal/api/interfaces"
	"election-system/internal/api/models"
)

// HealthCheck reports component liveness. The ledger being unreachable
// degrades the report but never fails it; local voting still works.
func HealthCheck(s interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		components := map[string]string{
			"database": "ok",
			"ledger":   "ok",
		}
		status := "ok"

		if err := s.GetDB().PingContext(c.Request.Context()); err != nil {
			components["database"] = "unavailable"
			status = "degraded"
		}

		if s.Ledger() != nil {
			if _, err := s.Ledger().BlockNumber(c.Request.Context()); err != nil {
				components["ledger"] = "unavailable"
				status = "degraded"
			}
		} else {
			components["ledger"] = "disabled"
		}

		code := http.StatusOK
		if components["database"] == "unavailable" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, models.HealthResponse{
			Status:     status,
			Components: components,
			Timestamp:  time.Now().Unix(),
		})
	}
}
