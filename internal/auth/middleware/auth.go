package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sb-works/collab-backend/internal/auth"
	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// RequireCaller validates the request credential and stores the caller in
// the context.
func RequireCaller(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok": false, "error": "missing authorization token", "code": domain.ErrorCode(domain.ErrUnauthenticated),
			})
			return
		}

		caller, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok": false, "error": "invalid token", "code": domain.ErrorCode(domain.ErrUnauthenticated),
			})
			return
		}

		auth.SetCaller(c, caller)
		c.Next()
	}
}
