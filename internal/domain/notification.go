package domain

import "time"

// Notification types produced by the scheduler and the manual trigger.
const (
	NotifDueReminder = "due_reminder"
	NotifInactivity  = "inactivity"
	NotifHealthAlert = "health_alert"
	NotifAlert       = "alert"
)

// Notification data keys used for dedup correlation: a due reminder for one
// task must not suppress a reminder for another task to the same user.
const (
	DataTaskID    = "taskId"
	DataProjectID = "projectId"
)

// Notification is an in-app notification row. Created once, immutable except
// for ReadAt which the mark-read endpoint sets.
type Notification struct {
	ID        int64
	UserID    int64
	Type      string
	Title     string
	Body      string
	Data      map[string]string
	ReadAt    *time.Time
	CreatedAt time.Time
}
