package repo

import (
	"context"
	"fmt"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProjectFilter narrows List.
type ProjectFilter struct {
	Status string
	Query  string
	Page   int
	Size   int
}

type ProjectRepo interface {
	Create(ctx context.Context, p dom.Project) (dom.Project, error)
	GetByID(ctx context.Context, id int64) (dom.Project, error)
	List(ctx context.Context, f ProjectFilter) ([]dom.Project, int, error)
	Update(ctx context.Context, id int64, patch dom.Project) (dom.Project, error)
	Delete(ctx context.Context, id int64) error

	// Scheduler read/write model.
	ActiveOrOnHold(ctx context.Context) ([]dom.Project, error)
	UpdateHealth(ctx context.Context, id int64, h dom.Health) error
}

type PGProjectRepo struct {
	db *pgxpool.Pool
}

func NewPGProjectRepo(db *pgxpool.Pool) *PGProjectRepo {
	return &PGProjectRepo{db: db}
}

const projectCols = `id, title, description, start_date, end_date, status, manager_id, members,
	group_id, health_score, health_status, health_updated_at, created_at, updated_at`

func scanProject(row pgx.Row) (dom.Project, error) {
	var p dom.Project
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.StartDate, &p.EndDate, &p.Status,
		&p.ManagerID, &p.Members, &p.GroupID,
		&p.Health.Score, &p.Health.Status, &p.Health.UpdatedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func collectProjects(rows pgx.Rows) ([]dom.Project, error) {
	defer rows.Close()
	var list []dom.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *PGProjectRepo) Create(ctx context.Context, p dom.Project) (dom.Project, error) {
	query := `
		INSERT INTO projects (title, description, start_date, end_date, status, manager_id, members, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + projectCols
	return scanProject(r.db.QueryRow(ctx, query,
		p.Title, p.Description, p.StartDate, p.EndDate, p.Status,
		p.ManagerID, emptyIfNil(p.Members), p.GroupID,
	))
}

func (r *PGProjectRepo) GetByID(ctx context.Context, id int64) (dom.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects WHERE id = $1`
	return scanProject(r.db.QueryRow(ctx, query, id))
}

func (r *PGProjectRepo) List(ctx context.Context, f ProjectFilter) ([]dom.Project, int, error) {
	where := `TRUE`
	var args []any
	if f.Status != "" && f.Status != "all" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where += fmt.Sprintf(` AND title ILIKE $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Size, (f.Page-1)*f.Size)
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		projectCols, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collectProjects(rows)
	return list, total, err
}

func (r *PGProjectRepo) Update(ctx context.Context, id int64, patch dom.Project) (dom.Project, error) {
	query := `
		UPDATE projects SET title = $2, description = $3, start_date = $4, end_date = $5,
			status = $6, manager_id = $7, members = $8, group_id = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + projectCols
	return scanProject(r.db.QueryRow(ctx, query, id,
		patch.Title, patch.Description, patch.StartDate, patch.EndDate,
		patch.Status, patch.ManagerID, emptyIfNil(patch.Members), patch.GroupID,
	))
}

func (r *PGProjectRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

func (r *PGProjectRepo) ActiveOrOnHold(ctx context.Context) ([]dom.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects WHERE status IN ('active', 'on_hold') ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// UpdateHealth is last-writer-wins on the health record; the scheduler and the
// manual recompute endpoint are the only callers.
func (r *PGProjectRepo) UpdateHealth(ctx context.Context, id int64, h dom.Health) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE projects SET health_score = $2, health_status = $3, health_updated_at = $4 WHERE id = $1`,
		id, h.Score, h.Status, h.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
