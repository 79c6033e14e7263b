package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Aurum/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	userColumns = `id, email, password_hash, role, created_at, updated_at`

	qUserInsert = `
INSERT INTO users (email, password_hash, role)
VALUES ($1, $2, $3)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserSetRole = `
UPDATE users
SET role       = $2,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	role := u.Role
	if role == "" {
		role = user.RoleCustomer
	}
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserInsert, u.Email, u.Password, string(role)), u); err != nil {
		if pgCode(err) == codeUniqueViolation {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByEmail, email), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetRole(ctx context.Context, id int64, role user.Role) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserSetRole, id, string(role)), &u); err != nil {
		if pgCode(err) == codeCheckViolation {
			return nil, user.ErrBadRole
		}
		return nil, err
	}
	return &u, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	var role string
	if err := row.Scan(&out.ID, &out.Email, &out.Password, &role, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	out.Role = user.Role(role)
	return nil
}
