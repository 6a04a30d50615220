// Package attendance owns the attendance-session lifecycle and the
// biometric check-in workflow. A session is a code-gated check-in window
// for one course; commit is terminal.
package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classattend/internal/apperr"
	"classattend/internal/auth"
	"classattend/internal/course"
	"classattend/internal/faceclient"
	"classattend/internal/queue"
	"classattend/internal/random"
	"classattend/internal/student"
)

// Session is one attendance window tied to a course.
type Session struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	// Code is the short check-in code distributed to the class.
	Code string `json:"code"`
	// Lat/Lng are the lecturer's position at creation. Recorded, not
	// validated against any geofence.
	Lat         string    `json:"lat"`
	Lng         string    `json:"long"`
	IsOpen      bool      `json:"is_open"`
	IsCommitted bool      `json:"is_committed"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined for listings.
	CourseTitle string `json:"course_title,omitempty"`
	CourseCode  string `json:"course_code,omitempty"`
	CheckIns    int    `json:"attendances"`
}

// CheckIn is one student's submission against one session.
type CheckIn struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	SessionID    string     `json:"session_id"`
	MatricNumber string     `json:"matric_number"`
	Lat          string     `json:"lat"`
	Lng          string     `json:"long"`
	Distance     float64    `json:"distance"`
	SelfieRef    string     `json:"selfie_ref"`
	Committed    bool       `json:"committed"`
	FinalizedAt  *time.Time `json:"finalized_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SessionRepository is the persistence contract for sessions.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetByID(ctx context.Context, id string) (Session, error)
	// GetByCode matches the check-in code case-insensitively.
	GetByCode(ctx context.Context, code string) (Session, error)
	ListByCourse(ctx context.Context, courseID string) ([]Session, error)
	SetState(ctx context.Context, id string, open, committed bool) error
	Delete(ctx context.Context, id string) error
}

// CheckInRepository is the persistence contract for check-ins. Insert
// must map the (student, session) unique constraint onto a conflict
// error; that constraint, not the Exists pre-check, is what closes the
// duplicate-submission race.
type CheckInRepository interface {
	Insert(ctx context.Context, c CheckIn) error
	Exists(ctx context.Context, studentID, sessionID string) (bool, error)
	Delete(ctx context.Context, id string) error
	Finalize(ctx context.Context, id string, at time.Time) error
	ListBySession(ctx context.Context, sessionID string) ([]CheckIn, error)
	// ListCommittedByCourse feeds the export reduction.
	ListCommittedByCourse(ctx context.Context, courseID string) ([]CheckIn, error)
}

// CourseDirectory resolves courses for ownership checks.
type CourseDirectory interface {
	GetByID(ctx context.Context, id string) (course.Course, error)
}

// StudentDirectory resolves students by matric number.
type StudentDirectory interface {
	GetByMatric(ctx context.Context, matric string) (student.Student, error)
}

// FaceGate is the external face capability boundary.
type FaceGate interface {
	DetectFaces(ctx context.Context, imageRef string) ([]faceclient.Region, error)
	EncodeFace(ctx context.Context, imageRef string, region faceclient.Region) (faceclient.Encoding, error)
	Compare(ctx context.Context, a, b faceclient.Encoding, tolerance float64) (bool, error)
}

// Publisher receives committed check-in audit events. Publishing is
// fire-and-forget; a queue outage never fails a check-in.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Config wires a Service.
type Config struct {
	Sessions  SessionRepository
	CheckIns  CheckInRepository
	Courses   CourseDirectory
	Students  StudentDirectory
	Face      FaceGate
	Tolerance float64
	Events    Publisher
}

// Service coordinates the session state machine, check-in workflow and
// export reduction.
type Service struct {
	sessions  SessionRepository
	checkins  CheckInRepository
	courses   CourseDirectory
	students  StudentDirectory
	face      FaceGate
	tolerance float64
	events    Publisher

	// nowFunc is swapped in tests.
	nowFunc func() time.Time
}

// NewService creates a service.
func NewService(cfg Config) *Service {
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = 0.42
	}
	return &Service{
		sessions:  cfg.Sessions,
		checkins:  cfg.CheckIns,
		courses:   cfg.Courses,
		students:  cfg.Students,
		face:      cfg.Face,
		tolerance: tol,
		events:    cfg.Events,
		nowFunc:   time.Now,
	}
}

// CreateSession opens a new attendance window with a fresh check-in code.
func (s *Service) CreateSession(ctx context.Context, id auth.Identity, courseID, lat, lng string) (Session, error) {
	if err := auth.LecturerOnly(id); err != nil {
		return Session{}, err
	}
	if courseID == "" {
		return Session{}, apperr.Validation("course", "missing course parameter")
	}
	crs, err := s.ownedCourse(ctx, id, courseID)
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:          uuid.NewString(),
		CourseID:    crs.ID,
		Code:        random.AttendanceCode(),
		Lat:         lat,
		Lng:         lng,
		IsOpen:      true,
		IsCommitted: false,
		CreatedAt:   s.nowFunc().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return Session{}, err
	}
	sessionTransitions.WithLabelValues("create").Inc()
	return sess, nil
}

// ListSessions returns a course's sessions to its owning lecturer. The
// course parameter is required.
func (s *Service) ListSessions(ctx context.Context, id auth.Identity, courseID string) ([]Session, error) {
	if err := auth.LecturerOnly(id); err != nil {
		return nil, err
	}
	if courseID == "" {
		return nil, apperr.Validation("course", "missing course parameter")
	}
	if _, err := s.ownedCourse(ctx, id, courseID); err != nil {
		return nil, err
	}
	return s.sessions.ListByCourse(ctx, courseID)
}

// SessionDetail returns a session's check-in records.
func (s *Service) SessionDetail(ctx context.Context, id auth.Identity, sessionID string) ([]CheckIn, error) {
	if _, err := s.ownedSession(ctx, id, sessionID); err != nil {
		return nil, err
	}
	return s.checkins.ListBySession(ctx, sessionID)
}

// Open reopens a session. Committed sessions are terminal: the call is a
// no-op that still returns the current representation.
func (s *Service) Open(ctx context.Context, id auth.Identity, sessionID string) (Session, error) {
	return s.transition(ctx, id, sessionID, "open", func(sess *Session) bool {
		if sess.IsCommitted {
			return false
		}
		sess.IsOpen = true
		return true
	})
}

// Close closes an open session. No-op if already committed.
func (s *Service) Close(ctx context.Context, id auth.Identity, sessionID string) (Session, error) {
	return s.transition(ctx, id, sessionID, "close", func(sess *Session) bool {
		if sess.IsCommitted {
			return false
		}
		sess.IsOpen = false
		return true
	})
}

// Commit finalizes a session. Commit forces the window closed and is
// terminal; the committed flag is never cleared.
func (s *Service) Commit(ctx context.Context, id auth.Identity, sessionID string) (Session, error) {
	return s.transition(ctx, id, sessionID, "commit", func(sess *Session) bool {
		sess.IsCommitted = true
		sess.IsOpen = false
		return true
	})
}

// DeleteSession removes a session and, by cascade, its check-ins.
func (s *Service) DeleteSession(ctx context.Context, id auth.Identity, sessionID string) (Session, error) {
	sess, err := s.ownedSession(ctx, id, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return Session{}, err
	}
	sessionTransitions.WithLabelValues("delete").Inc()
	return sess, nil
}

func (s *Service) transition(ctx context.Context, id auth.Identity, sessionID, action string, apply func(*Session) bool) (Session, error) {
	sess, err := s.ownedSession(ctx, id, sessionID)
	if err != nil {
		return Session{}, err
	}
	if !apply(&sess) {
		// Terminal state; return the current representation unchanged.
		return sess, nil
	}
	if err := s.sessions.SetState(ctx, sess.ID, sess.IsOpen, sess.IsCommitted); err != nil {
		return Session{}, err
	}
	sessionTransitions.WithLabelValues(action).Inc()
	return sess, nil
}

// ownedSession loads a session and verifies, via its course, that the
// caller is the owning lecturer.
func (s *Service) ownedSession(ctx context.Context, id auth.Identity, sessionID string) (Session, error) {
	if err := auth.LecturerOnly(id); err != nil {
		return Session{}, err
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if _, err := s.ownedCourse(ctx, id, sess.CourseID); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Service) ownedCourse(ctx context.Context, id auth.Identity, courseID string) (course.Course, error) {
	crs, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if crs.LecturerID != id.UserID {
		return course.Course{}, apperr.Authorization("you cannot manage attendance for courses that are not yours")
	}
	return crs, nil
}
