// Package middleware holds the gin middleware shared by the API routes:
// JWT verification and idempotency-key replay protection.
package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/staybook/staybook/internal/response"
)

const (
	// ContextKeyUserID is the gin context key carrying the caller id
	ContextKeyUserID = "user_id"
)

// AuthRequired verifies the Bearer token and stores the caller id in
// the gin context. Tokens are issued by the identity service; only
// verification happens here.
func AuthRequired(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Abort()
			response.Unauthorized(c, "missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
		if issuer != "" {
			opts = append(opts, jwt.WithIssuer(issuer))
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}, opts...)
		if err != nil || !token.Valid {
			c.Abort()
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.Abort()
			response.Unauthorized(c, "invalid token claims")
			return
		}

		userID, _ := claims["sub"].(string)
		if userID == "" {
			userID, _ = claims["user_id"].(string)
		}
		if userID == "" {
			c.Abort()
			response.Unauthorized(c, "token carries no subject")
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID extracts the authenticated caller id from the gin context
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
