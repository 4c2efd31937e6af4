package domain

import "time"

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
)

// Health statuses.
const (
	HealthGreen  = "green"
	HealthYellow = "yellow"
	HealthRed    = "red"
)

// Health is the derived project health record. Written only by the health job
// and the manual recompute endpoint.
type Health struct {
	Score     int
	Status    string
	UpdatedAt *time.Time
}

type Project struct {
	ID          int64
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      string
	ManagerID   int64
	Members     []int64
	GroupID     *int64
	Health      Health

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether userID is a project member.
func (p Project) HasMember(userID int64) bool {
	for _, id := range p.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// ProjectGroup bundles projects under one manager.
type ProjectGroup struct {
	ID          int64
	Name        string
	Description string
	Status      string
	ManagerID   int64
	Members     []int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
