package session

import (
	"net/http"
	"strings"
	"time"

	"token-service/internal/token"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireSession verifies a bearer session token and injects the caller
// identity into the request context. Token minting happens in the login
// flow of the adjacent identity service; this side only verifies with
// the shared key.
func RequireSession(signer *token.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := signer.Verify(tok, token.TokenTypeSession, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.Subject, claims.Email, claims.OrganizationID)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.Subject)
		c.Set("email", claims.Email)
		c.Set("organization_id", claims.OrganizationID)

		c.Next()
	}
}
