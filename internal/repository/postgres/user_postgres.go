package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"userapi/internal/model"
	"userapi/internal/repository"
)

const uniqueViolation = "23505"

// countTables maps entity names accepted by Count to their tables.
// Table names are never taken from callers.
var countTables = map[string]string{
	repository.EntityUser: "users",
}

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

func dataErr(op string, err error) error {
	return &repository.DataAccessError{Op: op, Entity: repository.EntityUser, Err: err}
}

// Count returns the number of rows backing entity.
func (r *UserPostgres) Count(ctx context.Context, entity string) (int64, error) {
	table, ok := countTables[entity]
	if !ok {
		return 0, &repository.DataAccessError{Op: "count", Entity: entity, Err: repository.ErrUnknownEntity}
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, &repository.DataAccessError{Op: "count", Entity: entity, Err: err}
	}
	return n, nil
}

// Create inserts a new user row and returns the stored record.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		INSERT INTO users (id, email, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, name, COALESCE(avatar_path, ''), created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Email,
		u.Name,
		u.CreatedAt,
	)
	var out model.User
	if err := row.Scan(
		&out.ID,
		&out.Email,
		&out.Name,
		&out.AvatarPath,
		&out.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
		}
		return nil, dataErr("create", err)
	}
	return &out, nil
}

// FindByID fetches a single user by its ID.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
		SELECT id, email, name, COALESCE(avatar_path, ''), created_at
		FROM users
		WHERE id = $1
	`
	var u model.User
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.AvatarPath,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dataErr("find", err)
	}
	return &u, nil
}

// List returns users using LIMIT/OFFSET pagination.
func (r *UserPostgres) List(ctx context.Context, pq repository.PageQuery) ([]model.User, error) {
	const q = `
		SELECT id, email, name, COALESCE(avatar_path, ''), created_at
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, dataErr("list", err)
	}
	defer rows.Close()

	items := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.Name,
			&u.AvatarPath,
			&u.CreatedAt,
		); err != nil {
			return nil, dataErr("list", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dataErr("list", err)
	}
	return items, nil
}

// UpdateAvatar stores the avatar object key of a user.
func (r *UserPostgres) UpdateAvatar(ctx context.Context, id, path string) error {
	const q = `UPDATE users SET avatar_path = NULLIF($2, '') WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, path)
	if err != nil {
		return dataErr("update_avatar", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dataErr("update_avatar", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a user by ID. It does not return an error if the row does not exist.
func (r *UserPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM users WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return dataErr("delete", err)
	}
	return nil
}
