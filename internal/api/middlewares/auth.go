package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"election-system/internal/api/interfaces"
	"election-system/internal/api/models"
)

// AdminRequired validates an admin JWT and puts the caller's identity into
// the request context.
func AdminRequired(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, models.ErrCodeUnauthorized, "Authorization token required")
			return
		}

		claims, err := validateToken(token, services.GetConfig().Security.JWTSecret)
		if err != nil {
			abortUnauthorized(c, models.ErrCodeInvalidToken, "Invalid or expired token")
			return
		}

		if claims.Role != "admin" {
			c.JSON(http.StatusForbidden, models.Fail(
				models.NewAPIError(models.ErrCodeForbidden, "Administrator access required", http.StatusForbidden)))
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// Claims are the token fields the API cares about.
type Claims struct {
	UserID string
	Role   string
}

func validateToken(token, secret string) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret not configured")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, _ := mapClaims["user_id"].(string)
	role, _ := mapClaims["role"].(string)
	if userID == "" || role == "" {
		return nil, fmt.Errorf("missing required claims")
	}

	return &Claims{UserID: userID, Role: role}, nil
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// websocket clients cannot set headers from the browser
	return c.Query("token")
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, models.Fail(
		models.NewAPIError(code, message, http.StatusUnauthorized)))
	c.Abort()
}
