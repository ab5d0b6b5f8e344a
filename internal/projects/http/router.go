package http

import "github.com/gin-gonic/gin"

// Register attaches project, application and admin routes to the given
// router group. The group must already authenticate the caller.
func (h *Handler) Register(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	projects.POST("", h.create)
	projects.GET("", h.list)
	projects.GET("/:id", h.get)
	projects.DELETE("/:id", h.delete)
	projects.PATCH("/:id/submit", h.submit)
	projects.PATCH("/:id/approve", h.approve)
	projects.PATCH("/:id/reject", h.reject)
	projects.POST("/:id/applications", h.apply)
	projects.GET("/:id/applications", h.listApplications)

	rg.PATCH("/applications/:appId/status", h.decideApplication)

	admin := rg.Group("/admin/projects")
	admin.PATCH("/:id/suspend", h.suspend)
	admin.PATCH("/:id/reinstate", h.reinstate)
}
