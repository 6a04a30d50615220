package auth

import (
	"context"
	"database/sql"
	"errors"

	"classattend/internal/apperr"
	"classattend/internal/store"
)

// PgRepository persists accounts and sessions in Postgres.
type PgRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PgRepository {
	return &PgRepository{db: db}
}

// CreateUser inserts an account, mapping the unique email constraint
// onto a conflict error.
func (r *PgRepository) CreateUser(ctx context.Context, usr User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, usr.ID, usr.Email, usr.PasswordHash, usr.Role, usr.IsActive, usr.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("a user with the same email already exists")
		}
		return apperr.Unexpected(err)
	}
	return nil
}

// GetUserByEmail looks an account up by its login email.
func (r *PgRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, is_active, created_at
		FROM users WHERE email = $1
	`, email)
	var usr User
	if err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &usr.Role, &usr.IsActive, &usr.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, apperr.Unexpected(err)
	}
	return usr, nil
}

// CreateSession stores a bearer token.
func (r *PgRepository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, s.Token, s.UserID, s.ExpiresAt)
	if err != nil {
		return apperr.Unexpected(err)
	}
	return nil
}

// GetSession returns a session and its owning user in one round trip.
func (r *PgRepository) GetSession(ctx context.Context, token string) (Session, User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT s.token, s.user_id, s.expires_at,
		       u.id, u.email, u.password_hash, u.role, u.is_active, u.created_at
		FROM auth_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1
	`, token)
	var (
		sess Session
		usr  User
	)
	err := row.Scan(
		&sess.Token, &sess.UserID, &sess.ExpiresAt,
		&usr.ID, &usr.Email, &usr.PasswordHash, &usr.Role, &usr.IsActive, &usr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, User{}, apperr.NotFound("session not found")
		}
		return Session{}, User{}, apperr.Unexpected(err)
	}
	return sess, usr, nil
}

// DeleteSession revokes a token.
func (r *PgRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token = $1`, token); err != nil {
		return apperr.Unexpected(err)
	}
	return nil
}
