package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sb-works/collab-backend/internal/auth"
	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/projects/service"
)

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	lifecycle *service.LifecycleService
	state     *service.StateService
}

func New(lifecycle *service.LifecycleService, state *service.StateService) *Handler {
	return &Handler{lifecycle: lifecycle, state: state}
}

type applicationStatusReq struct {
	Status domain.ApplicationStatus `json:"status"`
}

func httpStatusFor(err error) int {
	switch domain.ErrorCode(err) {
	case "unauthenticated":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "invalid_transition":
		return http.StatusConflict
	case "invalid_input":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Store details stay in the logs.
func fail(c *gin.Context, err error) {
	status := httpStatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = domain.ErrPersistence.Error()
	}
	c.JSON(status, gin.H{"ok": false, "error": msg, "code": domain.ErrorCode(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg, "code": domain.ErrorCode(domain.ErrInvalidInput)})
}

func projectID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

func caller(c *gin.Context) domain.Caller {
	return auth.CallerFrom(c)
}

func afterSeq(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Query("after"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
