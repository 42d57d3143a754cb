package store

import (
	"context"

	"github.com/MohamedNashad/seafood-node-api/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateUser inserts a user; email and username are unique
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	query := `
		INSERT INTO users (id, first_name, last_name, email, username, password_hash, client_id, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING created_at, updated_at`

	err := sqlx.GetContext(ctx, s.q, user, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.Username,
		user.PasswordHash, user.ClientID, user.CreatedBy)
	return mapError(err, "user")
}

// GetUserByID retrieves a user by ID, including soft deleted ones
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, s.q, &user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "user")
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by case-insensitive email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, s.q, &user, "SELECT * FROM users WHERE LOWER(email) = LOWER($1)", email)
	if err != nil {
		return nil, mapError(err, "user")
	}
	return &user, nil
}

// ListUsers retrieves all users, newest first
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := sqlx.SelectContext(ctx, s.q, &users, "SELECT * FROM users ORDER BY created_at DESC")
	return users, err
}

// UpdateUser updates profile fields and the password hash
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET first_name = $1, last_name = $2, email = $3, username = $4,
			password_hash = $5, updated_by = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := sqlx.GetContext(ctx, s.q, &user.UpdatedAt, query,
		user.FirstName, user.LastName, user.Email, user.Username,
		user.PasswordHash, user.UpdatedBy, user.ID)
	return mapError(err, "user")
}

// SetUserClient links a user to a client, or unlinks with a nil clientID
func (s *Store) SetUserClient(ctx context.Context, userID string, clientID *string) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE users SET client_id = $1, updated_at = NOW() WHERE id = $2", clientID, userID)
	if err != nil {
		return mapError(err, "user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapError(errNoRows, "user")
	}
	return nil
}
