package uploads

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sb-works/collab-backend/internal/auth"
	"github.com/sb-works/collab-backend/internal/projects/domain"
)

type prepareReq struct {
	ProjectID   string `json:"projectId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/uploads", h.prepare)
}

func (h *Handler) prepare(c *gin.Context) {
	var req prepareReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body", "code": domain.ErrorCode(domain.ErrInvalidInput)})
		return
	}

	t, err := h.svc.Prepare(c.Request.Context(), auth.CallerFrom(c), req.ProjectID, req.FileName, req.ContentType)
	if err != nil {
		status := http.StatusInternalServerError
		switch domain.ErrorCode(err) {
		case "invalid_input":
			status = http.StatusBadRequest
		case "forbidden":
			status = http.StatusForbidden
		case "not_found":
			status = http.StatusNotFound
		case "unauthenticated":
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error(), "code": domain.ErrorCode(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "upload": t})
}
