package repo

import (
	"context"
	"time"

	dom "taskmate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo provides user persistence. The notifier only ever reads.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (dom.User, error)
	GetByID(ctx context.Context, id int64) (dom.User, error)
	Create(ctx context.Context, name, email, passwordHash, role string) (dom.User, error)
	List(ctx context.Context) ([]dom.User, error)
	SetRoleStatus(ctx context.Context, id int64, role, status string) (dom.User, error)
	TouchLogin(ctx context.Context, id int64) error
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db *pgxpool.Pool
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{db: db}
}

const userCols = `id, name, email, password_hash, role, status, avatar_url, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (dom.User, error) {
	var u dom.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.AvatarURL, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (r *PGUserRepo) GetByID(ctx context.Context, id int64) (dom.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

// Create inserts a new user and returns it.
func (r *PGUserRepo) Create(ctx context.Context, name, email, passwordHash, role string) (dom.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userCols
	return scanUser(r.db.QueryRow(ctx, query, name, email, passwordHash, role))
}

func (r *PGUserRepo) List(ctx context.Context) ([]dom.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []dom.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *PGUserRepo) SetRoleStatus(ctx context.Context, id int64, role, status string) (dom.User, error) {
	query := `
		UPDATE users SET role = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userCols
	return scanUser(r.db.QueryRow(ctx, query, id, role, status))
}

func (r *PGUserRepo) TouchLogin(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, time.Now().UTC())
	return err
}
