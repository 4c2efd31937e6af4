package handlers

import (
	"net/http"

	"taskmate/internal/service"

	"github.com/gin-gonic/gin"
)

// DashboardHandler exposes health recompute and the global overview.
type DashboardHandler struct {
	projects *service.ProjectService
}

func NewDashboardHandler(projects *service.ProjectService) *DashboardHandler {
	return &DashboardHandler{projects: projects}
}

// RecomputeHealth godoc
// @Summary      Recompute project health now
// @Tags         dashboard
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  health.Result
// @Failure      404  {object}  map[string]string
// @Router       /dashboard/projects/{id}/recompute-health [post]
func (h *DashboardHandler) RecomputeHealth(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res, err := h.projects.RecomputeHealth(c.Request.Context(), actor(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Global godoc
// @Summary      Cross-project health and overdue overview
// @Tags         dashboard
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  service.GlobalSummary
// @Failure      403  {object}  map[string]string
// @Router       /dashboard/global [get]
func (h *DashboardHandler) Global(c *gin.Context) {
	sum, err := h.projects.Global(c.Request.Context(), actor(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
