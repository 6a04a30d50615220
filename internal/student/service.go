// Package student owns enrollment. A student is a matric number plus one
// enrollment photo; the photo's face encoding is recomputed from disk at
// check-in time, never stored.
package student

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"classattend/internal/apperr"
	"classattend/internal/faceclient"
)

// Student is an enrolled student.
type Student struct {
	ID           string    `json:"id"`
	MatricNumber string    `json:"matric_number"`
	// PhotoRef is the stored enrollment photo reference, the ground
	// truth for face matching.
	PhotoRef  string    `json:"photo_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the persistence contract for students.
type Repository interface {
	Create(ctx context.Context, st Student) error
	// GetByMatric matches the matric number case-insensitively.
	GetByMatric(ctx context.Context, matric string) (Student, error)
	Delete(ctx context.Context, id string) error
}

// FaceDetector is the slice of the face capability enrollment needs.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageRef string) ([]faceclient.Region, error)
}

// Service runs the enrollment workflow.
type Service struct {
	repo Repository
	face FaceDetector
}

// NewService creates a service.
func NewService(repo Repository, face FaceDetector) *Service {
	return &Service{repo: repo, face: face}
}

// EnrollResult is returned on conflict-free enrollment.
type EnrollResult struct {
	MatricNumber string `json:"matric_number"`
}

// Enroll registers a student against an already-stored photo reference.
// The photo must contain exactly one face; any anomaly rolls the record
// back so a failed enrollment leaves no trace.
func (s *Service) Enroll(ctx context.Context, matric, photoRef string) (EnrollResult, error) {
	matric = strings.TrimSpace(matric)
	if matric == "" || photoRef == "" {
		return EnrollResult{}, apperr.Validation("matric_number", "please provide both matric number and image")
	}

	if existing, err := s.repo.GetByMatric(ctx, matric); err == nil {
		// Existing enrollment wins; the stored photo is never overwritten.
		return EnrollResult{}, &apperr.Error{
			Kind:    apperr.KindConflict,
			Message: fmt.Sprintf("matric number %s is already enrolled with photo %s", existing.MatricNumber, existing.PhotoRef),
		}
	} else if !apperr.IsKind(err, apperr.KindNotFound) {
		return EnrollResult{}, err
	}

	st := Student{
		ID:           uuid.NewString(),
		MatricNumber: matric,
		PhotoRef:     photoRef,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return EnrollResult{}, err
	}

	faces, err := s.face.DetectFaces(ctx, photoRef)
	if err != nil {
		_ = s.repo.Delete(ctx, st.ID)
		return EnrollResult{}, apperr.Unexpected(err)
	}
	if n := len(faces); n != 1 {
		_ = s.repo.Delete(ctx, st.ID)
		return EnrollResult{}, rejectFaceCount(n)
	}

	return EnrollResult{MatricNumber: st.MatricNumber}, nil
}

// Check reports whether a matric number is enrolled.
func (s *Service) Check(ctx context.Context, matric string) (Student, error) {
	if strings.TrimSpace(matric) == "" {
		return Student{}, apperr.Validation("matric_number", "please provide student matric number")
	}
	return s.repo.GetByMatric(ctx, strings.TrimSpace(matric))
}

func rejectFaceCount(n int) error {
	if n == 0 {
		return apperr.BiometricReject(0, "sorry no face was detected, make sure your face is showing in the image")
	}
	return apperr.BiometricReject(n, fmt.Sprintf("sorry %d faces were detected, only one face should be in the image", n))
}
