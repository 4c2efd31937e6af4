package repo

import (
	"context"
	"errors"
	"time"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DedupKey selects an existing notification within the dedup window. TaskID
// and ProjectID are correlation keys: when set, only a notification carrying
// the same value suppresses a new one.
type DedupKey struct {
	UserID    int64
	Type      string
	Since     time.Time
	TaskID    string
	ProjectID string
}

type NotificationRepo interface {
	Create(ctx context.Context, n dom.Notification) (dom.Notification, error)
	FindRecent(ctx context.Context, key DedupKey) (*dom.Notification, error)
	ListByUser(ctx context.Context, userID int64, page, limit int) ([]dom.Notification, int, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id, userID int64) (dom.Notification, error)
}

type PGNotificationRepo struct {
	db *pgxpool.Pool
}

func NewPGNotificationRepo(db *pgxpool.Pool) *PGNotificationRepo {
	return &PGNotificationRepo{db: db}
}

const notifCols = `id, user_id, type, title, body, data, read_at, created_at`

func scanNotification(row pgx.Row) (dom.Notification, error) {
	var n dom.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Data, &n.ReadAt, &n.CreatedAt)
	return n, err
}

func (r *PGNotificationRepo) Create(ctx context.Context, n dom.Notification) (dom.Notification, error) {
	if n.Data == nil {
		n.Data = map[string]string{}
	}
	query := `
		INSERT INTO notifications (user_id, type, title, body, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + notifCols
	return scanNotification(r.db.QueryRow(ctx, query, n.UserID, n.Type, n.Title, n.Body, n.Data))
}

// FindRecent returns the newest matching notification since key.Since, or nil.
func (r *PGNotificationRepo) FindRecent(ctx context.Context, key DedupKey) (*dom.Notification, error) {
	query := `
		SELECT ` + notifCols + ` FROM notifications
		WHERE user_id = $1 AND type = $2 AND created_at >= $3
		  AND ($4 = '' OR data->>'taskId' = $4)
		  AND ($5 = '' OR data->>'projectId' = $5)
		ORDER BY created_at DESC
		LIMIT 1`
	n, err := scanNotification(r.db.QueryRow(ctx, query,
		key.UserID, key.Type, key.Since, key.TaskID, key.ProjectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PGNotificationRepo) ListByUser(ctx context.Context, userID int64, page, limit int) ([]dom.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `
		SELECT ` + notifCols + ` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []dom.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, n)
	}
	return list, total, rows.Err()
}

func (r *PGNotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

func (r *PGNotificationRepo) MarkRead(ctx context.Context, id, userID int64) (dom.Notification, error) {
	query := `
		UPDATE notifications SET read_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + notifCols
	return scanNotification(r.db.QueryRow(ctx, query, id, userID))
}
