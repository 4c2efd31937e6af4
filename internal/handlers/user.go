package handlers

import (
	"net/http"

	"taskmate/internal/dto"
	"taskmate/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler is the admin surface over accounts.
type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List godoc
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     CookieAuth
// @Success      200  {array}  dto.UserResponse
// @Failure      403  {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.UserResponse, 0, len(list))
	for _, u := range list {
		out = append(out, dto.ToUserResponse(u))
	}
	c.JSON(http.StatusOK, out)
}

// SetRoleStatus godoc
// @Summary      Change a user's role or status
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      int  true  "User ID"
// @Param        body  body      dto.SetRoleStatusRequest  true  "Role and status"
// @Success      200   {object}  dto.UserResponse
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /users/{id} [patch]
func (h *UserHandler) SetRoleStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetRoleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.svc.SetRoleStatus(c.Request.Context(), id, req.Role, req.Status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(u))
}
