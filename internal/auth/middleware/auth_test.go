package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sb-works/collab-backend/internal/auth"
	"github.com/sb-works/collab-backend/internal/projects/domain"
)

type staticVerifier map[string]domain.Caller

func (v staticVerifier) Verify(_ context.Context, token string) (domain.Caller, error) {
	c, ok := v[token]
	if !ok {
		return domain.Caller{}, domain.ErrUnauthenticated
	}
	return c, nil
}

func TestRequireCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := staticVerifier{"good": {ID: "u1", Role: domain.RoleClient}}

	r := gin.New()
	r.Use(RequireCaller(v))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": auth.CallerFrom(c).ID})
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, `"code":"unauthenticated"`},
		{"invalid", "Bearer bad", http.StatusUnauthorized, "invalid token"},
		{"valid", "Bearer good", http.StatusOK, `"id":"u1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}
