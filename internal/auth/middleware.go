package auth

import (
	"log"
	"net/http"
	"strings"

	"sportsblock/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			log.Printf("Auth: token validation failed: %v", err)
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Set user information in context
		c.Set("user_id", claims.UserID)
		c.Set("hive_account", claims.HiveAccount)

		c.Next()
	}
}

// OptionalAuthMiddleware populates user context when a valid token is present
// but lets anonymous requests through. Read endpoints use it to join the
// caller's own stakes into responses.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			if claims, err := ValidateToken(parts[1]); err == nil {
				c.Set("user_id", claims.UserID)
				c.Set("hive_account", claims.HiveAccount)
			}
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	appErr := apperrors.New(apperrors.CodeUnauthorized, message)
	c.JSON(http.StatusUnauthorized, gin.H{"error": appErr})
	c.Abort()
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}

	id, ok := userID.(uint)
	return id, ok
}

// GetHiveAccount retrieves the Hive account name from the context
func GetHiveAccount(c *gin.Context) (string, bool) {
	account, exists := c.Get("hive_account")
	if !exists {
		return "", false
	}

	name, ok := account.(string)
	return name, ok
}
