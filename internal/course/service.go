// Package course owns the course registry. Courses are scoped to their
// owning lecturer; no cross-lecturer write path exists.
package course

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"classattend/internal/apperr"
	"classattend/internal/auth"
)

// Course is a taught course owned by one lecturer.
type Course struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Code       string    `json:"code"`
	LecturerID string    `json:"lecturer_id"`
	CreatedAt  time.Time `json:"created_at"`
	// Sessions is the number of attendance sessions held so far.
	Sessions int `json:"attendances"`
}

// Repository is the persistence contract for courses.
type Repository interface {
	Create(ctx context.Context, c Course) error
	GetByID(ctx context.Context, id string) (Course, error)
	GetByLecturerAndCode(ctx context.Context, lecturerID, code string) (Course, error)
	ListByLecturer(ctx context.Context, lecturerID string) ([]Course, error)
}

// Service exposes the course registry operations.
type Service struct {
	repo Repository
}

// NewService creates a service backed by a repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the calling lecturer's courses.
func (s *Service) List(ctx context.Context, id auth.Identity) ([]Course, error) {
	if err := auth.LecturerOnly(id); err != nil {
		return nil, err
	}
	return s.repo.ListByLecturer(ctx, id.UserID)
}

// Get returns a course only to its owning lecturer.
func (s *Service) Get(ctx context.Context, id auth.Identity, courseID string) (Course, error) {
	if err := auth.LecturerOnly(id); err != nil {
		return Course{}, err
	}
	crs, err := s.repo.GetByID(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if crs.LecturerID != id.UserID {
		return Course{}, apperr.Authorization("you cannot view courses that are not yours")
	}
	return crs, nil
}

// Create registers a course. Each lecturer's course codes are unique.
func (s *Service) Create(ctx context.Context, id auth.Identity, title, code string) (Course, error) {
	if err := auth.LecturerOnly(id); err != nil {
		return Course{}, err
	}
	if title == "" {
		return Course{}, apperr.Validation("title", "please provide the course title")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Course{}, apperr.Validation("code", "please provide the course code")
	}

	if existing, err := s.repo.GetByLecturerAndCode(ctx, id.UserID, code); err == nil {
		return Course{}, apperr.Conflict(fmt.Sprintf("course %s with the same code exists", existing.Title))
	} else if !apperr.IsKind(err, apperr.KindNotFound) {
		return Course{}, err
	}

	crs := Course{
		ID:         uuid.NewString(),
		Title:      title,
		Code:       code,
		LecturerID: id.UserID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, crs); err != nil {
		return Course{}, err
	}
	return crs, nil
}
