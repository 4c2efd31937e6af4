package domain

import "time"

// Task statuses (kanban columns).
const (
	TaskTodo  = "todo"
	TaskDoing = "doing"
	TaskDone  = "done"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Domain entity: бизнес-объект (истина).
// Не зависит от Gin, Postgres, Redis.
type Task struct {
	ID           int64
	ProjectID    int64
	Title        string
	Description  string
	Status       string
	Priority     string
	Assignees    []int64
	Labels       []string
	Predecessors []int64
	DueDate      *time.Time
	CompletedAt  *time.Time
	Order        int
	CreatedBy    int64
	TotalHours   float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OverdueOpen reports whether the task is past due and not done.
func (t Task) OverdueOpen(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != TaskDone
}

// OnTimeDone reports whether the task was completed no later than its due date.
func (t Task) OnTimeDone() bool {
	return t.Status == TaskDone && t.DueDate != nil && t.CompletedAt != nil &&
		!t.CompletedAt.After(*t.DueDate)
}

// HasAssignee reports whether userID is among the task assignees.
func (t Task) HasAssignee(userID int64) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment is a task comment.
type Comment struct {
	ID        int64
	TaskID    int64
	UserID    int64
	Text      string
	CreatedAt time.Time
}

// TimeEntry is a logged chunk of work on a task.
type TimeEntry struct {
	ID     int64
	TaskID int64
	UserID int64
	Hours  float64
	Note   string
	At     time.Time
}
