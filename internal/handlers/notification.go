package handlers

import (
	"net/http"

	"taskmate/internal/auth"
	"taskmate/internal/dto"
	"taskmate/internal/scheduler"
	"taskmate/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc   *service.NotificationService
	sched *scheduler.Scheduler
}

func NewNotificationHandler(svc *service.NotificationService, sched *scheduler.Scheduler) *NotificationHandler {
	return &NotificationHandler{svc: svc, sched: sched}
}

// List godoc
// @Summary      List my notifications
// @Tags         notifications
// @Produce      json
// @Security     CookieAuth
// @Param        page  query     int  false  "Page, 1-based"
// @Param        size  query     int  false  "Page size"
// @Success      200   {object}  dto.ListNotificationsResponse
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 20)
	list, total, unread, err := h.svc.List(c.Request.Context(), auth.UserIDFromContext(c), page, size)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, dto.ToNotificationResponse(n))
	}
	c.JSON(http.StatusOK, dto.ListNotificationsResponse{
		Items: out, Total: total, Unread: unread, Page: page, Size: size,
	})
}

// MarkRead godoc
// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Notification ID"
// @Success      200  {object}  dto.NotificationResponse
// @Failure      404  {object}  map[string]string
// @Router       /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), auth.UserIDFromContext(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToNotificationResponse(n))
}

// TriggerDue godoc
// @Summary      Run due/overdue notifications now
// @Tags         notifications
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.TriggerDueResponse
// @Failure      403  {object}  map[string]string
// @Router       /notifications/trigger-due [post]
func (h *NotificationHandler) TriggerDue(c *gin.Context) {
	created, err := h.sched.TriggerDue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.TriggerDueResponse{Created: created})
}
