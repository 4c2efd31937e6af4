package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dom "taskmate/internal/domain"
)

// DueDate parses due_date from JSON as either date-only ("2006-01-02") or RFC3339.
// Date-only is stored as start of that day in UTC.
type DueDate struct{ t *time.Time }

func (d *DueDate) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.t = nil
		return nil
	}
	s := strings.TrimSpace(*raw)
	layouts := []string{
		"2006-01-02",     // date only
		time.RFC3339,     // 2006-01-02T15:04:05Z07:00
		time.RFC3339Nano, // with nanoseconds
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			if layout == "2006-01-02" {
				// Date-only means start of that day in UTC.
				parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			}
			d.t = &parsed
			return nil
		}
	}
	return fmt.Errorf("due_date: use date (YYYY-MM-DD) or RFC3339 datetime")
}

// Ptr returns *time.Time for use in service/domain.
func (d DueDate) Ptr() *time.Time { return d.t }

type CreateTaskRequest struct {
	ProjectID    int64    `json:"project_id" binding:"required"`
	Title        string   `json:"title" binding:"required,min=1,max=200"`
	Description  string   `json:"description" binding:"max=2000"`
	Priority     string   `json:"priority" binding:"omitempty,oneof=high medium low"`
	Assignees    []int64  `json:"assignees"`
	Labels       []string `json:"labels"`
	Predecessors []int64  `json:"predecessors"`
	DueDate      DueDate  `json:"due_date"` // optional: "2026-02-19" or RFC3339
}

type UpdateTaskRequest struct {
	Title        *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Description  *string   `json:"description" binding:"omitempty,max=2000"`
	Status       *string   `json:"status" binding:"omitempty,oneof=todo doing done"`
	Priority     *string   `json:"priority" binding:"omitempty,oneof=high medium low"`
	Assignees    *[]int64  `json:"assignees"`
	Labels       *[]string `json:"labels"`
	Predecessors *[]int64  `json:"predecessors"`
	DueDate      *DueDate  `json:"due_date"` // nil = не менять, значение = поставить
}

type ReorderTaskRequest struct {
	Status string `json:"status" binding:"required,oneof=todo doing done"`
	Index  int    `json:"index" binding:"min=0"`
}

type TaskResponse struct {
	ID           int64      `json:"id"`
	ProjectID    int64      `json:"project_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Assignees    []int64    `json:"assignees"`
	Labels       []string   `json:"labels"`
	Predecessors []int64    `json:"predecessors"`
	DueDate      *time.Time `json:"due_date"`
	CompletedAt  *time.Time `json:"completed_at"`
	Order        int        `json:"order"`
	CreatedBy    int64      `json:"created_by"`
	TotalHours   float64    `json:"total_hours"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func ToTaskResponse(t dom.Task) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		Assignees:    t.Assignees,
		Labels:       t.Labels,
		Predecessors: t.Predecessors,
		DueDate:      t.DueDate,
		CompletedAt:  t.CompletedAt,
		Order:        t.Order,
		CreatedBy:    t.CreatedBy,
		TotalHours:   t.TotalHours,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func ToTaskResponses(list []dom.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, ToTaskResponse(t))
	}
	return out
}

type ListTasksResponse struct {
	Items []TaskResponse `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// ProjectSummaryResponse is the analytics block for one project. DueNext7 is
// a per-day count of open tasks due over the coming week, index 0 = today.
type ProjectSummaryResponse struct {
	Total        int            `json:"total"`
	Todo         int            `json:"todo"`
	Doing        int            `json:"doing"`
	Done         int            `json:"done"`
	OverdueOpen  int            `json:"overdue_open"`
	UpcomingWeek int            `json:"upcoming_week"`
	OnTimeRate   float64        `json:"on_time_rate"`
	TotalHours   float64        `json:"total_hours"`
	ByAssignee   map[int64]int  `json:"by_assignee"`
	DueNext7     []int          `json:"due_next_7"`
	Recent       []TaskResponse `json:"recent"`
}

type CreateCommentRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

type CommentResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type LogTimeRequest struct {
	Hours float64  `json:"hours" binding:"required"`
	Note  string   `json:"note" binding:"max=500"`
	At    *DueDate `json:"at"`
}

type TimeEntryResponse struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	UserID     int64     `json:"user_id"`
	Hours      float64   `json:"hours"`
	Note       string    `json:"note"`
	At         time.Time `json:"at"`
	TotalHours float64   `json:"total_hours"`
}

type ActivityResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	TaskID     int64     `json:"task_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	CreatedAt  time.Time `json:"created_at"`
}
