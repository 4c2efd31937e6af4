package dto

import (
	"time"

	dom "taskmate/internal/domain"
)

type NotificationResponse struct {
	ID        int64             `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func ToNotificationResponse(n dom.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		Data:      n.Data,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type ListNotificationsResponse struct {
	Items  []NotificationResponse `json:"items"`
	Total  int                    `json:"total"`
	Unread int                    `json:"unread"`
	Page   int                    `json:"page"`
	Size   int                    `json:"size"`
}

// TriggerDueResponse reports how many notifications the manual run created.
type TriggerDueResponse struct {
	Created int `json:"created"`
}
