package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"taskmate/internal/auth"
	"taskmate/internal/dto"
	"taskmate/internal/repo"
	"taskmate/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// Create godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        body  body      dto.CreateTaskRequest  true  "Task body"
// @Success      201   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.svc.Create(c.Request.Context(), actor(c), service.CreateTaskInput{
		ProjectID:    req.ProjectID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Assignees:    req.Assignees,
		Labels:       req.Labels,
		Predecessors: req.Predecessors,
		DueDate:      req.DueDate.Ptr(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToTaskResponse(t))
}

// GetByID godoc
// @Summary      Get a task by ID
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  dto.TaskResponse
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.GetByID(c.Request.Context(), actor(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskResponse(t))
}

// Update godoc
// @Summary      Update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      int  true  "Task ID"
// @Param        body  body      dto.UpdateTaskRequest  true  "Partial update"
// @Success      200   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := service.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		Assignees:    req.Assignees,
		Labels:       req.Labels,
		Predecessors: req.Predecessors,
	}
	if req.DueDate != nil {
		patch.DueDate = req.DueDate.Ptr()
	}
	t, err := h.svc.Update(c.Request.Context(), actor(c), id, patch)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskResponse(t))
}

// Reorder godoc
// @Summary      Move a task to a board slot
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      int  true  "Task ID"
// @Param        body  body      dto.ReorderTaskRequest  true  "Target column and index"
// @Success      200   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /tasks/{id}/reorder [post]
func (h *TaskHandler) Reorder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.ReorderTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.svc.Reorder(c.Request.Context(), actor(c), id, req.Status, req.Index)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskResponse(t))
}

// Delete godoc
// @Summary      Delete a task
// @Tags         tasks
// @Security     CookieAuth
// @Param        id   path  int  true  "Task ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
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

// Board godoc
// @Summary      Project board (all tasks in column order)
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  dto.ListTasksResponse
// @Failure      404  {object}  map[string]string
// @Router       /projects/{id}/board [get]
func (h *TaskHandler) Board(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Board(c.Request.Context(), actor(c), projectID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTasksResponse{Items: dto.ToTaskResponses(list), Total: len(list)})
}

// List godoc
// @Summary      List project tasks with filters
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id      path      int     true   "Project ID"
// @Param        status  query     string  false  "todo|doing|done|all"
// @Param        q       query     string  false  "Title substring"
// @Param        sort    query     string  false  "dueAsc|dueDesc"
// @Param        page    query     int     false  "Page, 1-based"
// @Param        size    query     int     false  "Page size"
// @Success      200     {object}  dto.ListTasksResponse
// @Router       /projects/{id}/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	f := repo.TaskFilter{
		Status: c.Query("status"),
		Query:  c.Query("q"),
		Sort:   c.Query("sort"),
		Page:   queryInt(c, "page", 1),
		Size:   queryInt(c, "size", 20),
	}
	list, total, err := h.svc.List(c.Request.Context(), actor(c), projectID, f)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTasksResponse{
		Items: dto.ToTaskResponses(list), Total: total, Page: f.Page, Size: f.Size,
	})
}

// Summary godoc
// @Summary      Project analytics block
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  dto.ProjectSummaryResponse
// @Router       /projects/{id}/summary [get]
func (h *TaskHandler) Summary(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	sum, err := h.svc.Summary(c.Request.Context(), actor(c), projectID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProjectSummaryResponse{
		Total:        sum.Total,
		Todo:         sum.Todo,
		Doing:        sum.Doing,
		Done:         sum.Done,
		OverdueOpen:  sum.OverdueOpen,
		UpcomingWeek: sum.UpcomingWeek,
		OnTimeRate:   sum.OnTimeRate,
		TotalHours:   sum.TotalHours,
		ByAssignee:   sum.ByAssignee,
		DueNext7:     sum.DueNext7[:],
		Recent:       dto.ToTaskResponses(sum.Recent),
	})
}

// AddDependency godoc
// @Summary      Add a predecessor to a task
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id     path      int  true  "Task ID"
// @Param        depId  path      int  true  "Predecessor task ID"
// @Success      200    {object}  dto.TaskResponse
// @Failure      400    {object}  map[string]string
// @Router       /tasks/{id}/dependencies/{depId} [post]
func (h *TaskHandler) AddDependency(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	depID, ok := parseID(c, "depId")
	if !ok {
		return
	}
	t, err := h.svc.AddDependency(c.Request.Context(), actor(c), id, depID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskResponse(t))
}

// RemoveDependency godoc
// @Summary      Remove a predecessor from a task
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id     path      int  true  "Task ID"
// @Param        depId  path      int  true  "Predecessor task ID"
// @Success      200    {object}  dto.TaskResponse
// @Failure      404    {object}  map[string]string
// @Router       /tasks/{id}/dependencies/{depId} [delete]
func (h *TaskHandler) RemoveDependency(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	depID, ok := parseID(c, "depId")
	if !ok {
		return
	}
	t, err := h.svc.RemoveDependency(c.Request.Context(), actor(c), id, depID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskResponse(t))
}

// AddComment godoc
// @Summary      Comment on a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      int  true  "Task ID"
// @Param        body  body      dto.CreateCommentRequest  true  "Comment body"
// @Success      201   {object}  dto.CommentResponse
// @Router       /tasks/{id}/comments [post]
func (h *TaskHandler) AddComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cm, err := h.svc.AddComment(c.Request.Context(), actor(c), id, req.Text)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CommentResponse{
		ID: cm.ID, TaskID: cm.TaskID, UserID: cm.UserID, Text: cm.Text, CreatedAt: cm.CreatedAt,
	})
}

// Comments godoc
// @Summary      List task comments
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id     path      int  true   "Task ID"
// @Param        limit  query     int  false  "Max rows, default 50"
// @Success      200    {array}   dto.CommentResponse
// @Router       /tasks/{id}/comments [get]
func (h *TaskHandler) Comments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Comments(c.Request.Context(), actor(c), id, queryInt(c, "limit", 50))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.CommentResponse, 0, len(list))
	for _, cm := range list {
		out = append(out, dto.CommentResponse{
			ID: cm.ID, TaskID: cm.TaskID, UserID: cm.UserID, Text: cm.Text, CreatedAt: cm.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// DeleteComment godoc
// @Summary      Delete a comment
// @Tags         tasks
// @Security     CookieAuth
// @Param        id   path  int  true  "Comment ID"
// @Success      204
// @Router       /comments/{id} [delete]
func (h *TaskHandler) DeleteComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteComment(c.Request.Context(), actor(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LogTime godoc
// @Summary      Log hours on a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      int  true  "Task ID"
// @Param        body  body      dto.LogTimeRequest  true  "Hours; negative = correction"
// @Success      201   {object}  dto.TimeEntryResponse
// @Router       /tasks/{id}/time [post]
func (h *TaskHandler) LogTime(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.LogTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var at *time.Time
	if req.At != nil {
		at = req.At.Ptr()
	}
	e, total, err := h.svc.LogTime(c.Request.Context(), actor(c), id, req.Hours, req.Note, at)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.TimeEntryResponse{
		ID: e.ID, TaskID: e.TaskID, UserID: e.UserID, Hours: e.Hours,
		Note: e.Note, At: e.At, TotalHours: total,
	})
}

// DeleteTimeEntry godoc
// @Summary      Delete a time entry
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      int  true  "Time entry ID"
// @Success      200  {object}  map[string]float64
// @Failure      404  {object}  map[string]string
// @Router       /time/{id} [delete]
func (h *TaskHandler) DeleteTimeEntry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	total, err := h.svc.DeleteTimeEntry(c.Request.Context(), actor(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_hours": total})
}

// TimeEntries godoc
// @Summary      List logged time on a task
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path     int  true  "Task ID"
// @Success      200  {array}  dto.TimeEntryResponse
// @Router       /tasks/{id}/time [get]
func (h *TaskHandler) TimeEntries(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.TimeEntries(c.Request.Context(), actor(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.TimeEntryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, dto.TimeEntryResponse{
			ID: e.ID, TaskID: e.TaskID, UserID: e.UserID, Hours: e.Hours, Note: e.Note, At: e.At,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Activity godoc
// @Summary      Task activity feed
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id     path     int  true   "Task ID"
// @Param        limit  query    int  false  "Max rows, default 50"
// @Success      200    {array}  dto.ActivityResponse
// @Router       /tasks/{id}/activity [get]
func (h *TaskHandler) Activity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Activity(c.Request.Context(), actor(c), id, queryInt(c, "limit", 50))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.ActivityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, dto.ActivityResponse{
			ID: a.ID, UserID: a.UserID, TaskID: a.TaskID, Action: a.Action,
			FromStatus: a.FromStatus, ToStatus: a.ToStatus, CreatedAt: a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func actor(c *gin.Context) service.Actor {
	return service.Actor{ID: auth.UserIDFromContext(c), Role: auth.RoleFromContext(c)}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDependencyOpen):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
