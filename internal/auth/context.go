package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

const (
	CtxCaller = "caller"
	CtxUserID = "user_id"
)

// SetCaller stores the verified caller on the Gin context.
func SetCaller(c *gin.Context, caller domain.Caller) {
	c.Set(CtxCaller, caller)
	c.Set(CtxUserID, caller.ID)
}

// CallerFrom extracts the caller set by RequireCaller. The zero Caller is
// returned when the request was not authenticated.
func CallerFrom(c *gin.Context) domain.Caller {
	v, ok := c.Get(CtxCaller)
	if !ok {
		return domain.Caller{}
	}
	caller, _ := v.(domain.Caller)
	return caller
}
