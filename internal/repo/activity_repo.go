package repo

import (
	"context"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityRepo interface {
	Create(ctx context.Context, a dom.Activity) error
	ListByTask(ctx context.Context, taskID int64, limit int) ([]dom.Activity, error)
}

type PGActivityRepo struct {
	db *pgxpool.Pool
}

func NewPGActivityRepo(db *pgxpool.Pool) *PGActivityRepo {
	return &PGActivityRepo{db: db}
}

func (r *PGActivityRepo) Create(ctx context.Context, a dom.Activity) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO activities (user_id, task_id, action, from_status, to_status)
		VALUES ($1, $2, $3, $4, $5)`,
		a.UserID, a.TaskID, a.Action, a.FromStatus, a.ToStatus)
	return err
}

func (r *PGActivityRepo) ListByTask(ctx context.Context, taskID int64, limit int) ([]dom.Activity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, task_id, action, from_status, to_status, created_at
		FROM activities WHERE task_id = $1 ORDER BY created_at DESC LIMIT $2`,
		taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []dom.Activity
	for rows.Next() {
		var a dom.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.TaskID, &a.Action,
			&a.FromStatus, &a.ToStatus, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
