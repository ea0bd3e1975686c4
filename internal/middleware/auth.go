package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/courseloop/authgate/internal/session"
	"github.com/courseloop/authgate/pkg/token"
	"github.com/gin-gonic/gin"
)

const claimsContextKey = "claims"

// Authenticator validates a bearer token and returns its claims
type Authenticator interface {
	Authenticate(ctx context.Context, tok string) (*token.Claims, error)
}

// RequireAuth creates an authentication middleware. The token is read from
// the Authorization header, falling back to the session cookie.
func RequireAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := ""
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				RecordTokenValidation("failure")
				abortUnauthenticated(c, "Invalid Authorization header format")
				return
			}
			tok = authHeader[len("Bearer "):]
		} else {
			tok = session.Read(c.Request)
		}

		if tok == "" {
			RecordTokenValidation("missing")
			abortUnauthenticated(c, "Missing credentials")
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), tok)
		if err != nil {
			RecordTokenValidation("failure")
			abortUnauthenticated(c, "Invalid or expired token")
			return
		}

		RecordTokenValidation("success")
		c.Set(claimsContextKey, claims)
		c.Set("subject_id", claims.SubjectID)

		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth
func ClaimsFromContext(c *gin.Context) (*token.Claims, bool) {
	v, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHENTICATED",
			"message": message,
		},
	})
}
