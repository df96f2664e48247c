package repository

import (
	"context"
	"database/sql"
	"errors"

	"eventix/internal/database"
	"eventix/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, nil
	}

	user := &models.User{}
	query := `
		SELECT id, name, email, role, created_at
		FROM users
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return user, err
}

// Ensure creates the user or, when the email is taken, updates name and role
// of the existing one
func (r *UserRepository) Ensure(ctx context.Context, name, email, role string) (*models.User, error) {
	user := &models.User{}
	query := `
		INSERT INTO users (name, email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		RETURNING id, name, email, role, created_at`

	err := r.db.QueryRowContext(ctx, query, name, email, role).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
