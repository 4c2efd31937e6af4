package repo

import (
	"context"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GroupRepo interface {
	Create(ctx context.Context, g dom.ProjectGroup) (dom.ProjectGroup, error)
	GetByID(ctx context.Context, id int64) (dom.ProjectGroup, error)
	List(ctx context.Context) ([]dom.ProjectGroup, error)
	Update(ctx context.Context, id int64, patch dom.ProjectGroup) (dom.ProjectGroup, error)
	Delete(ctx context.Context, id int64) error
}

type PGGroupRepo struct {
	db *pgxpool.Pool
}

func NewPGGroupRepo(db *pgxpool.Pool) *PGGroupRepo {
	return &PGGroupRepo{db: db}
}

const groupCols = `id, name, description, status, manager_id, members, created_at, updated_at`

func scanGroup(row pgx.Row) (dom.ProjectGroup, error) {
	var g dom.ProjectGroup
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Status, &g.ManagerID,
		&g.Members, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (r *PGGroupRepo) Create(ctx context.Context, g dom.ProjectGroup) (dom.ProjectGroup, error) {
	query := `
		INSERT INTO project_groups (name, description, status, manager_id, members)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + groupCols
	return scanGroup(r.db.QueryRow(ctx, query,
		g.Name, g.Description, g.Status, g.ManagerID, emptyIfNil(g.Members)))
}

func (r *PGGroupRepo) GetByID(ctx context.Context, id int64) (dom.ProjectGroup, error) {
	return scanGroup(r.db.QueryRow(ctx,
		`SELECT `+groupCols+` FROM project_groups WHERE id = $1`, id))
}

func (r *PGGroupRepo) List(ctx context.Context) ([]dom.ProjectGroup, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+groupCols+` FROM project_groups ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []dom.ProjectGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

func (r *PGGroupRepo) Update(ctx context.Context, id int64, patch dom.ProjectGroup) (dom.ProjectGroup, error) {
	query := `
		UPDATE project_groups SET name = $2, description = $3, status = $4,
			manager_id = $5, members = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + groupCols
	return scanGroup(r.db.QueryRow(ctx, query, id,
		patch.Name, patch.Description, patch.Status, patch.ManagerID, emptyIfNil(patch.Members)))
}

func (r *PGGroupRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM project_groups WHERE id = $1`, id)
	return err
}
