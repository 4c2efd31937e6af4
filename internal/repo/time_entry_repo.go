package repo

import (
	"context"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TimeEntryRepo interface {
	Create(ctx context.Context, e dom.TimeEntry) (dom.TimeEntry, error)
	GetByID(ctx context.Context, id int64) (dom.TimeEntry, error)
	ListByTask(ctx context.Context, taskID int64) ([]dom.TimeEntry, error)
	Delete(ctx context.Context, id int64) error
	// AddHours adjusts the denormalized running total on the task row.
	AddHours(ctx context.Context, taskID int64, delta float64) (float64, error)
}

type PGTimeEntryRepo struct {
	db *pgxpool.Pool
}

func NewPGTimeEntryRepo(db *pgxpool.Pool) *PGTimeEntryRepo {
	return &PGTimeEntryRepo{db: db}
}

const timeEntryCols = `id, task_id, user_id, hours, note, at`

func scanTimeEntry(row pgx.Row) (dom.TimeEntry, error) {
	var e dom.TimeEntry
	err := row.Scan(&e.ID, &e.TaskID, &e.UserID, &e.Hours, &e.Note, &e.At)
	return e, err
}

func (r *PGTimeEntryRepo) Create(ctx context.Context, e dom.TimeEntry) (dom.TimeEntry, error) {
	query := `
		INSERT INTO time_entries (task_id, user_id, hours, note, at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + timeEntryCols
	return scanTimeEntry(r.db.QueryRow(ctx, query, e.TaskID, e.UserID, e.Hours, e.Note, e.At))
}

func (r *PGTimeEntryRepo) GetByID(ctx context.Context, id int64) (dom.TimeEntry, error) {
	return scanTimeEntry(r.db.QueryRow(ctx,
		`SELECT `+timeEntryCols+` FROM time_entries WHERE id = $1`, id))
}

func (r *PGTimeEntryRepo) ListByTask(ctx context.Context, taskID int64) ([]dom.TimeEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+timeEntryCols+` FROM time_entries WHERE task_id = $1 ORDER BY at ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []dom.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *PGTimeEntryRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	return err
}

func (r *PGTimeEntryRepo) AddHours(ctx context.Context, taskID int64, delta float64) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `
		UPDATE tasks SET total_hours = GREATEST(0, total_hours + $2), updated_at = NOW()
		WHERE id = $1
		RETURNING total_hours`, taskID, delta).Scan(&total)
	return total, err
}
