package repo

import (
	"context"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CommentRepo interface {
	Create(ctx context.Context, c dom.Comment) (dom.Comment, error)
	GetByID(ctx context.Context, id int64) (dom.Comment, error)
	ListByTask(ctx context.Context, taskID int64, limit int) ([]dom.Comment, error)
	Delete(ctx context.Context, id int64) error
}

type PGCommentRepo struct {
	db *pgxpool.Pool
}

func NewPGCommentRepo(db *pgxpool.Pool) *PGCommentRepo {
	return &PGCommentRepo{db: db}
}

const commentCols = `id, task_id, user_id, text, created_at`

func scanComment(row pgx.Row) (dom.Comment, error) {
	var c dom.Comment
	err := row.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Text, &c.CreatedAt)
	return c, err
}

func (r *PGCommentRepo) Create(ctx context.Context, c dom.Comment) (dom.Comment, error) {
	query := `
		INSERT INTO task_comments (task_id, user_id, text)
		VALUES ($1, $2, $3)
		RETURNING ` + commentCols
	return scanComment(r.db.QueryRow(ctx, query, c.TaskID, c.UserID, c.Text))
}

func (r *PGCommentRepo) GetByID(ctx context.Context, id int64) (dom.Comment, error) {
	return scanComment(r.db.QueryRow(ctx,
		`SELECT `+commentCols+` FROM task_comments WHERE id = $1`, id))
}

// ListByTask returns the newest comments first, capped at limit.
func (r *PGCommentRepo) ListByTask(ctx context.Context, taskID int64, limit int) ([]dom.Comment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+commentCols+` FROM task_comments WHERE task_id = $1 ORDER BY created_at DESC LIMIT $2`,
		taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []dom.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *PGCommentRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM task_comments WHERE id = $1`, id)
	return err
}
