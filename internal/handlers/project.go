package handlers

import (
	"net/http"

	"taskmate/internal/dto"
	"taskmate/internal/repo"
	"taskmate/internal/service"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	svc *service.ProjectService
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

func projectInput(req dto.CreateProjectRequest) service.CreateProjectInput {
	in := service.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		ManagerID:   req.ManagerID,
		Members:     req.Members,
		GroupID:     req.GroupID,
	}
	if req.StartDate != nil {
		in.StartDate = req.StartDate.Ptr()
	}
	if req.EndDate != nil {
		in.EndDate = req.EndDate.Ptr()
	}
	return in
}

// Create godoc
// @Summary      Create a project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        body  body      dto.CreateProjectRequest  true  "Project body"
// @Success      201   {object}  dto.ProjectResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.Create(c.Request.Context(), actor(c), projectInput(req))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToProjectResponse(p))
}

// GetByID godoc
// @Summary      Get a project by ID
// @Tags         projects
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  dto.ProjectResponse
// @Failure      404  {object}  map[string]string
// @Router       /projects/{id} [get]
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetByID(c.Request.Context(), actor(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToProjectResponse(p))
}

// List godoc
// @Summary      List projects
// @Tags         projects
// @Produce      json
// @Security     CookieAuth
// @Param        status  query     string  false  "active|on_hold|completed|all"
// @Param        q       query     string  false  "Title substring"
// @Param        page    query     int     false  "Page, 1-based"
// @Param        size    query     int     false  "Page size"
// @Success      200     {object}  dto.ListProjectsResponse
// @Router       /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	f := repo.ProjectFilter{
		Status: c.Query("status"),
		Query:  c.Query("q"),
		Page:   queryInt(c, "page", 1),
		Size:   queryInt(c, "size", 20),
	}
	list, total, err := h.svc.List(c.Request.Context(), actor(c), f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.ProjectResponse, 0, len(list))
	for _, p := range list {
		out = append(out, dto.ToProjectResponse(p))
	}
	c.JSON(http.StatusOK, dto.ListProjectsResponse{Items: out, Total: total, Page: f.Page, Size: f.Size})
}

// Update godoc
// @Summary      Update a project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      int  true  "Project ID"
// @Param        body  body      dto.CreateProjectRequest  true  "Project body"
// @Success      200   {object}  dto.ProjectResponse
// @Failure      404   {object}  map[string]string
// @Router       /projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.Update(c.Request.Context(), actor(c), id, projectInput(req))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToProjectResponse(p))
}

// Delete godoc
// @Summary      Delete a project
// @Tags         projects
// @Security     CookieAuth
// @Param        id   path  int  true  "Project ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Router       /projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
