package handlers

import (
	"net/http"

	dom "taskmate/internal/domain"
	"taskmate/internal/dto"
	"taskmate/internal/service"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	svc *service.GroupService
}

func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{svc: svc}
}

// Create godoc
// @Summary      Create a project group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        body  body      dto.CreateGroupRequest  true  "Group body"
// @Success      201   {object}  dto.GroupResponse
// @Failure      403   {object}  map[string]string
// @Router       /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.svc.Create(c.Request.Context(), actor(c), dom.ProjectGroup{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		ManagerID:   req.ManagerID,
		Members:     req.Members,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToGroupResponse(g))
}

// List godoc
// @Summary      List project groups
// @Tags         groups
// @Produce      json
// @Security     CookieAuth
// @Success      200  {array}  dto.GroupResponse
// @Router       /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.GroupResponse, 0, len(list))
	for _, g := range list {
		out = append(out, dto.ToGroupResponse(g))
	}
	c.JSON(http.StatusOK, out)
}

// GetByID godoc
// @Summary      Get a group by ID
// @Tags         groups
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Group ID"
// @Success      200  {object}  dto.GroupResponse
// @Failure      404  {object}  map[string]string
// @Router       /groups/{id} [get]
func (h *GroupHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	g, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToGroupResponse(g))
}

// Update godoc
// @Summary      Update a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      int  true  "Group ID"
// @Param        body  body      dto.CreateGroupRequest  true  "Group body"
// @Success      200   {object}  dto.GroupResponse
// @Failure      404   {object}  map[string]string
// @Router       /groups/{id} [put]
func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.svc.Update(c.Request.Context(), actor(c), id, dom.ProjectGroup{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		ManagerID:   req.ManagerID,
		Members:     req.Members,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToGroupResponse(g))
}

// Delete godoc
// @Summary      Delete a group
// @Tags         groups
// @Security     CookieAuth
// @Param        id   path  int  true  "Group ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Router       /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
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
