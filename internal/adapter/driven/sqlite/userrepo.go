package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create persists a new user.
func (r *UserRepo) Create(ctx context.Context, user model.User) error {
	const query = `INSERT INTO users (user_id, email, name, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		user.ID.String(),
		user.Email,
		user.Name,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.ID, err)
	}
	return nil
}

// GetByID returns the user with the given id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const query = `SELECT user_id, email, name, created_at FROM users WHERE user_id = ?`
	return r.getOne(ctx, query, id.String())
}

// GetByEmail returns the user with the given email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const query = `SELECT user_id, email, name, created_at FROM users WHERE email = ?`
	return r.getOne(ctx, query, email)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var (
		idStr, email, name, createdAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, arg).Scan(&idStr, &email, &name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse user_id %q: %w", idStr, err)
	}

	user := &model.User{ID: id, Email: email, Name: name}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for user %s: %w", idStr, err)
	}

	return user, nil
}
