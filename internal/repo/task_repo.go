package repo

import (
	"context"
	"fmt"
	"time"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskFilter narrows ListByProject.
type TaskFilter struct {
	Status string // "", "all" = any
	Query  string // substring match on title
	Sort   string // "dueAsc", "dueDesc" or "" = board order
	Page   int
	Size   int
}

type TaskRepo interface {
	Create(ctx context.Context, t dom.Task) (dom.Task, error)
	GetByID(ctx context.Context, id int64) (dom.Task, error)
	GetByIDs(ctx context.Context, ids []int64) ([]dom.Task, error)
	ListByProject(ctx context.Context, projectID int64, f TaskFilter) ([]dom.Task, int, error)
	Board(ctx context.Context, projectID int64) ([]dom.Task, error)
	Update(ctx context.Context, id int64, patch dom.Task) (dom.Task, error)
	Delete(ctx context.Context, id int64) error

	// Board ordering.
	MaxOrder(ctx context.Context, projectID int64, status string) (int, error)
	MakeRoom(ctx context.Context, projectID int64, status string, from int) error
	CompactAfter(ctx context.Context, projectID int64, status string, after int) error
	ShiftDown(ctx context.Context, projectID int64, status string, lo, hi int) error
	ShiftUp(ctx context.Context, projectID int64, status string, lo, hi int) error
	SetPosition(ctx context.Context, id int64, status string, order int) error

	// Scheduler read model.
	DueOpen(ctx context.Context, now time.Time) ([]dom.Task, error)
	DueBetween(ctx context.Context, from, to time.Time) ([]dom.Task, error)
	Stale(ctx context.Context, cutoff time.Time) ([]dom.Task, error)
	ByProject(ctx context.Context, projectID int64) ([]dom.Task, error)
}

type PGTaskRepo struct {
	db *pgxpool.Pool
}

func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

const taskCols = `id, project_id, title, description, status, priority, assignees, labels,
	predecessors, due_date, completed_at, sort_order, created_by, total_hours, created_at, updated_at`

func scanTask(row pgx.Row) (dom.Task, error) {
	var t dom.Task
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.Assignees, &t.Labels, &t.Predecessors, &t.DueDate, &t.CompletedAt,
		&t.Order, &t.CreatedBy, &t.TotalHours, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func collectTasks(rows pgx.Rows) ([]dom.Task, error) {
	defer rows.Close()
	var list []dom.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *PGTaskRepo) Create(ctx context.Context, t dom.Task) (dom.Task, error) {
	query := `
		INSERT INTO tasks (project_id, title, description, status, priority, assignees, labels, predecessors, due_date, sort_order, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + taskCols
	return scanTask(r.db.QueryRow(ctx, query,
		t.ProjectID, t.Title, t.Description, t.Status, t.Priority,
		emptyIfNil(t.Assignees), emptyStrIfNil(t.Labels), emptyIfNil(t.Predecessors),
		t.DueDate, t.Order, t.CreatedBy,
	))
}

func (r *PGTaskRepo) GetByID(ctx context.Context, id int64) (dom.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE id = $1`
	return scanTask(r.db.QueryRow(ctx, query, id))
}

func (r *PGTaskRepo) GetByIDs(ctx context.Context, ids []int64) ([]dom.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskCols + ` FROM tasks WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *PGTaskRepo) ListByProject(ctx context.Context, projectID int64, f TaskFilter) ([]dom.Task, int, error) {
	where := `project_id = $1`
	args := []any{projectID}
	if f.Status != "" && f.Status != "all" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where += fmt.Sprintf(` AND title ILIKE $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := `sort_order ASC, created_at DESC`
	switch f.Sort {
	case "dueAsc":
		order = `due_date ASC NULLS LAST`
	case "dueDesc":
		order = `due_date DESC NULLS LAST`
	}
	args = append(args, f.Size, (f.Page-1)*f.Size)
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		taskCols, where, order, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collectTasks(rows)
	return list, total, err
}

func (r *PGTaskRepo) Board(ctx context.Context, projectID int64) ([]dom.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE project_id = $1 ORDER BY status ASC, sort_order ASC`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *PGTaskRepo) Update(ctx context.Context, id int64, patch dom.Task) (dom.Task, error) {
	query := `
		UPDATE tasks SET title = $2, description = $3, status = $4, priority = $5,
			assignees = $6, labels = $7, predecessors = $8, due_date = $9,
			completed_at = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + taskCols
	return scanTask(r.db.QueryRow(ctx, query, id,
		patch.Title, patch.Description, patch.Status, patch.Priority,
		emptyIfNil(patch.Assignees), emptyStrIfNil(patch.Labels), emptyIfNil(patch.Predecessors),
		patch.DueDate, patch.CompletedAt,
	))
}

func (r *PGTaskRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (r *PGTaskRepo) MaxOrder(ctx context.Context, projectID int64, status string) (int, error) {
	var max int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sort_order), -1) FROM tasks WHERE project_id = $1 AND status = $2`,
		projectID, status,
	).Scan(&max)
	return max, err
}

// MakeRoom shifts every task at or after the target index one slot right.
func (r *PGTaskRepo) MakeRoom(ctx context.Context, projectID int64, status string, from int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET sort_order = sort_order + 1 WHERE project_id = $1 AND status = $2 AND sort_order >= $3`,
		projectID, status, from)
	return err
}

// CompactAfter closes the gap left in a column after a task moved out of it.
func (r *PGTaskRepo) CompactAfter(ctx context.Context, projectID int64, status string, after int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET sort_order = sort_order - 1 WHERE project_id = $1 AND status = $2 AND sort_order > $3`,
		projectID, status, after)
	return err
}

// ShiftDown decrements orders in (lo, hi] for a move toward the end of a column.
func (r *PGTaskRepo) ShiftDown(ctx context.Context, projectID int64, status string, lo, hi int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET sort_order = sort_order - 1 WHERE project_id = $1 AND status = $2 AND sort_order > $3 AND sort_order <= $4`,
		projectID, status, lo, hi)
	return err
}

// ShiftUp increments orders in [lo, hi) for a move toward the start of a column.
func (r *PGTaskRepo) ShiftUp(ctx context.Context, projectID int64, status string, lo, hi int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET sort_order = sort_order + 1 WHERE project_id = $1 AND status = $2 AND sort_order >= $3 AND sort_order < $4`,
		projectID, status, lo, hi)
	return err
}

// SetPosition moves a task to a column slot. completed_at follows the status
// so a board drag into or out of "done" behaves like an edit.
func (r *PGTaskRepo) SetPosition(ctx context.Context, id int64, status string, order int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tasks SET status = $2, sort_order = $3,
			completed_at = CASE WHEN $2 = 'done' THEN COALESCE(completed_at, NOW()) ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1`,
		id, status, order)
	return err
}

func (r *PGTaskRepo) DueOpen(ctx context.Context, now time.Time) ([]dom.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks
		WHERE status <> 'done' AND due_date IS NOT NULL AND due_date <= $1
		ORDER BY due_date ASC`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *PGTaskRepo) DueBetween(ctx context.Context, from, to time.Time) ([]dom.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks
		WHERE status <> 'done' AND due_date >= $1 AND due_date < $2
		ORDER BY due_date ASC`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *PGTaskRepo) Stale(ctx context.Context, cutoff time.Time) ([]dom.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks
		WHERE status = 'doing' AND updated_at < $1
		ORDER BY updated_at ASC`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *PGTaskRepo) ByProject(ctx context.Context, projectID int64) ([]dom.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE project_id = $1`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// Array columns are NOT NULL DEFAULT '{}'; keep inserts consistent with that.
func emptyIfNil(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func emptyStrIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
