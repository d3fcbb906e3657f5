package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"vetscan-backend/internal/models"
)

const UserIDKey = "user_id"

// AuthMiddleware validates a Bearer JWT (HS256) and stores its subject as
// the requesting user id. Ownership checks in handlers rely on this value.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization header format"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "token has no subject"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, subject)
		c.Next()
	}
}
