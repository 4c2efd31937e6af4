package dto

import (
	"time"

	dom "taskmate/internal/domain"
)

type CreateProjectRequest struct {
	Title       string   `json:"title" binding:"required,min=1,max=200"`
	Description string   `json:"description" binding:"max=2000"`
	StartDate   *DueDate `json:"start_date"`
	EndDate     *DueDate `json:"end_date"`
	Status      string   `json:"status" binding:"omitempty,oneof=active on_hold completed"`
	ManagerID   int64    `json:"manager_id"`
	Members     []int64  `json:"members"`
	GroupID     *int64   `json:"group_id"`
}

type HealthResponse struct {
	Score     int        `json:"score"`
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type ProjectResponse struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	StartDate   *time.Time     `json:"start_date"`
	EndDate     *time.Time     `json:"end_date"`
	Status      string         `json:"status"`
	ManagerID   int64          `json:"manager_id"`
	Members     []int64        `json:"members"`
	GroupID     *int64         `json:"group_id"`
	Health      HealthResponse `json:"health"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func ToProjectResponse(p dom.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Status:      p.Status,
		ManagerID:   p.ManagerID,
		Members:     p.Members,
		GroupID:     p.GroupID,
		Health: HealthResponse{
			Score:     p.Health.Score,
			Status:    p.Health.Status,
			UpdatedAt: p.Health.UpdatedAt,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type ListProjectsResponse struct {
	Items []ProjectResponse `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

type CreateGroupRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=200"`
	Description string  `json:"description" binding:"max=2000"`
	Status      string  `json:"status" binding:"omitempty,oneof=active on_hold completed"`
	ManagerID   int64   `json:"manager_id"`
	Members     []int64 `json:"members"`
}

type GroupResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	ManagerID   int64     `json:"manager_id"`
	Members     []int64   `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToGroupResponse(g dom.ProjectGroup) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Status:      g.Status,
		ManagerID:   g.ManagerID,
		Members:     g.Members,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}
