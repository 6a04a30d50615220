// Package auth owns identities and bearer sessions. Tokens are opaque
// random strings resolved against the session store on every request, so
// revocation is a row delete and expiry is checked server-side.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"classattend/internal/apperr"
	"classattend/internal/random"
)

// Roles a user account can carry.
const (
	RoleLecturer = "LECTURER"
	RoleStudent  = "STUDENT"
	RoleAdmin    = "ADMIN"
)

// User is a login-capable account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// Identity is the resolved (user, role) pair passed explicitly into
// workflows. Nothing downstream reaches back into request state.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// IsLecturer reports whether the identity may operate lecturer endpoints.
func (id Identity) IsLecturer() bool { return id.Role == RoleLecturer }

// Session is a stored bearer token.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Repository is the persistence contract for accounts and sessions.
type Repository interface {
	CreateUser(ctx context.Context, usr User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateSession(ctx context.Context, s Session) error
	// GetSession returns the session and its owning user.
	GetSession(ctx context.Context, token string) (Session, User, error)
	DeleteSession(ctx context.Context, token string) error
}

// Service issues and resolves sessions.
type Service struct {
	repo     Repository
	tokenTTL time.Duration

	// nowFunc is swapped in tests.
	nowFunc func() time.Time
}

// NewService creates a service. tokenTTL applies to login and signup alike.
func NewService(repo Repository, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Service{repo: repo, tokenTTL: tokenTTL, nowFunc: time.Now}
}

// Login verifies credentials and issues a fresh session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" {
		return "", apperr.Validation("email", "please provide your email address")
	}
	if password == "" {
		return "", apperr.Validation("password", "please provide your password")
	}

	usr, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return "", apperr.Authentication("wrong password or email address")
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)) != nil {
		return "", apperr.Authentication("wrong password or email address")
	}
	if !usr.IsActive {
		return "", apperr.Authentication("user is not active")
	}

	return s.issue(ctx, usr)
}

// RegisterLecturer creates a lecturer account and logs it straight in.
func (s *Service) RegisterLecturer(ctx context.Context, email, password string) (string, error) {
	if email == "" {
		return "", apperr.Validation("email", "please provide an email address")
	}
	if password == "" {
		return "", apperr.Validation("password", "please provide a password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Unexpected(err)
	}

	usr := User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		Role:         RoleLecturer,
		IsActive:     true,
		CreatedAt:    s.nowFunc().UTC(),
	}
	if err := s.repo.CreateUser(ctx, usr); err != nil {
		return "", err
	}

	return s.issue(ctx, usr)
}

// Resolve maps a bearer token onto an identity. Expired sessions are
// deleted on sight.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.Authentication("missing bearer token")
	}

	sess, usr, err := s.repo.GetSession(ctx, token)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return Identity{}, apperr.Authentication("token does not exist")
		}
		return Identity{}, err
	}
	if s.nowFunc().After(sess.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, token)
		return Identity{}, apperr.Authentication("token expired")
	}
	if !usr.IsActive {
		return Identity{}, apperr.Authentication("user is not active")
	}

	return Identity{UserID: usr.ID, Email: usr.Email, Role: usr.Role}, nil
}

// LecturerOnly is the authorization predicate guarding lecturer workflows.
// Evaluated explicitly before a workflow runs; never enforced by panics
// or by reaching into ambient request state.
func LecturerOnly(id Identity) error {
	if !id.IsLecturer() {
		return apperr.Authorization("please login with a lecturer account")
	}
	return nil
}

func (s *Service) issue(ctx context.Context, usr User) (string, error) {
	sess := Session{
		Token:     random.Token(),
		UserID:    usr.ID,
		ExpiresAt: s.nowFunc().Add(s.tokenTTL),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return "", err
	}
	return sess.Token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
