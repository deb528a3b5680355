package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"relay-service/internal/auth"
)

// AuthMiddleware validates the credential token and stores the caller's user
// id on the context. REST endpoints reject unauthenticated callers; only the
// websocket gateway degrades to anonymous.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		userID, err := verifier.UserID(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
