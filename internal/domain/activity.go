package domain

import "time"

// Activity actions.
const (
	ActivityStatusChanged = "status_changed"
	ActivityDeleted       = "deleted"
)

// Activity is an audit row for task status changes and deletions.
type Activity struct {
	ID         int64
	UserID     int64
	TaskID     int64
	Action     string
	FromStatus string
	ToStatus   string
	CreatedAt  time.Time
}
