package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

func (h *Handler) create(c *gin.Context) {
	var req domain.ProjectDraft
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}

	p, err := h.lifecycle.CreateProject(c.Request.Context(), caller(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	status := domain.Status(strings.TrimSpace(c.Query("status")))
	if status != "" && !status.Valid() {
		badRequest(c, "unknown status")
		return
	}

	items, err := h.state.List(c.Request.Context(), caller(c), status)
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []domain.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

// get returns the project with its full message history, or only the
// messages after ?after=<seq> when the client already holds a prefix.
func (h *Handler) get(c *gin.Context) {
	after, ok := afterSeq(c)
	if !ok {
		badRequest(c, "after must be a non-negative sequence number")
		return
	}

	st, err := h.state.Fetch(c.Request.Context(), caller(c), projectID(c), after)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"project":      st.Project,
		"messages":     st.Messages,
		"participants": st.Participants,
	})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.lifecycle.Delete(c.Request.Context(), caller(c), projectID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) submit(c *gin.Context) {
	p, err := h.lifecycle.Submit(c.Request.Context(), caller(c), projectID(c))
	h.respondProject(c, p, err)
}

func (h *Handler) approve(c *gin.Context) {
	p, err := h.lifecycle.Approve(c.Request.Context(), caller(c), projectID(c))
	h.respondProject(c, p, err)
}

func (h *Handler) reject(c *gin.Context) {
	p, err := h.lifecycle.Reject(c.Request.Context(), caller(c), projectID(c))
	h.respondProject(c, p, err)
}

func (h *Handler) suspend(c *gin.Context) {
	p, err := h.lifecycle.Suspend(c.Request.Context(), caller(c), projectID(c))
	h.respondProject(c, p, err)
}

func (h *Handler) reinstate(c *gin.Context) {
	p, err := h.lifecycle.Reinstate(c.Request.Context(), caller(c), projectID(c))
	h.respondProject(c, p, err)
}

func (h *Handler) respondProject(c *gin.Context, p *domain.Project, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) apply(c *gin.Context) {
	var req domain.ApplicationDraft
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}

	a, err := h.lifecycle.Apply(c.Request.Context(), caller(c), projectID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "application": a})
}

func (h *Handler) listApplications(c *gin.Context) {
	items, err := h.lifecycle.ListApplications(c.Request.Context(), caller(c), projectID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []domain.Application{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "applications": items})
}

// decideApplication accepts or rejects a Pending application. Accepting also
// returns the now Active project.
func (h *Handler) decideApplication(c *gin.Context) {
	var req applicationStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	appID := strings.TrimSpace(c.Param("appId"))

	switch req.Status {
	case domain.ApplicationAccepted:
		a, p, err := h.lifecycle.AcceptApplication(c.Request.Context(), caller(c), appID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "application": a, "project": p})
	case domain.ApplicationRejected:
		a, err := h.lifecycle.RejectApplication(c.Request.Context(), caller(c), appID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "application": a})
	default:
		badRequest(c, `status must be "Accepted" or "Rejected"`)
	}
}
