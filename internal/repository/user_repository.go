package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/persistence"
)

// UserRepository defines persistence access for credentials.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, username, hash string) error
	UpdateRole(ctx context.Context, username string, role domain.Role) error
}

type userRepository struct {
	db *persistence.Database
}

// NewUserRepository returns a database-backed implementation.
func NewUserRepository(db *persistence.Database) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, name, email, password_hash, role, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.DB.ExecContext(ctx, r.db.Rebind(query),
		user.Username,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		dbTime{user.CreatedAt},
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT username, name, email, password_hash, role, created_at
        FROM users WHERE username=?`

	var (
		user      domain.User
		createdAt dbTime
	)
	err := r.db.DB.QueryRowContext(ctx, r.db.Rebind(query), username).Scan(
		&user.Username,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = createdAt.Time
	return &user, nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	const query = `UPDATE users SET password_hash=? WHERE username=?`
	return r.execOne(ctx, query, hash, username)
}

func (r *userRepository) UpdateRole(ctx context.Context, username string, role domain.Role) error {
	const query = `UPDATE users SET role=? WHERE username=?`
	return r.execOne(ctx, query, role, username)
}

func (r *userRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.DB.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
