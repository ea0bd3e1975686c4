package identity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repository handles user data operations against the identity store
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new identity repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindByEmail finds a user by email address
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	query := `SELECT id, email, password_digest, display_name, role, permissions, last_logged_on, created_at, updated_at
			  FROM users
			  WHERE email = $1`

	err := r.db.GetContext(ctx, &user, query, email)
	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return &user, nil
}

// FindByID finds a user by ID
func (r *Repository) FindByID(ctx context.Context, id int) (*User, error) {
	var user User
	query := `SELECT id, email, password_digest, display_name, role, permissions, last_logged_on, created_at, updated_at
			  FROM users
			  WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return &user, nil
}

// Create inserts a new user and fills in its generated fields
func (r *Repository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (email, password_digest, display_name, role, permissions, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			  RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.Email, user.PasswordDigest, user.DisplayName, user.Role, user.Permissions,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UpdateLastLoggedOn updates the user's last_logged_on timestamp
func (r *Repository) UpdateLastLoggedOn(ctx context.Context, userID int) error {
	query := `UPDATE users SET last_logged_on = NOW(), updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to update last_logged_on: %w", err)
	}

	return nil
}
