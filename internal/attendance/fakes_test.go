package attendance

import (
	"context"
	"strings"
	"sync"
	"time"

	"classattend/internal/apperr"
	"classattend/internal/course"
	"classattend/internal/faceclient"
	"classattend/internal/queue"
	"classattend/internal/student"
)

type fakeSessionRepo struct {
	sessions map[string]Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, s Session) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, apperr.NotFound("attendance session not found")
	}
	return s, nil
}

func (r *fakeSessionRepo) GetByCode(_ context.Context, code string) (Session, error) {
	for _, s := range r.sessions {
		if strings.EqualFold(s.Code, code) {
			return s, nil
		}
	}
	return Session{}, apperr.NotFound("attendance session not found")
}

func (r *fakeSessionRepo) ListByCourse(_ context.Context, courseID string) ([]Session, error) {
	var out []Session
	for _, s := range r.sessions {
		if s.CourseID == courseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) SetState(_ context.Context, id string, open, committed bool) error {
	s, ok := r.sessions[id]
	if !ok {
		return apperr.NotFound("attendance session not found")
	}
	s.IsOpen = open
	s.IsCommitted = committed
	r.sessions[id] = s
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

// fakeCheckInRepo enforces the (student, session) unique constraint the
// way the database does, so constraint-race behavior is testable.
type fakeCheckInRepo struct {
	mu       sync.Mutex
	checkins map[string]CheckIn
}

func newFakeCheckInRepo() *fakeCheckInRepo {
	return &fakeCheckInRepo{checkins: make(map[string]CheckIn)}
}

func (r *fakeCheckInRepo) Insert(_ context.Context, c CheckIn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.checkins {
		if existing.StudentID == c.StudentID && existing.SessionID == c.SessionID {
			return apperr.Conflict("this student is already on the list")
		}
	}
	r.checkins[c.ID] = c
	return nil
}

func (r *fakeCheckInRepo) Exists(_ context.Context, studentID, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.checkins {
		if c.StudentID == studentID && c.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCheckInRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkins, id)
	return nil
}

func (r *fakeCheckInRepo) Finalize(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checkins[id]
	if !ok {
		return apperr.NotFound("check-in not found")
	}
	c.Committed = true
	c.FinalizedAt = &at
	r.checkins[id] = c
	return nil
}

func (r *fakeCheckInRepo) ListBySession(_ context.Context, sessionID string) ([]CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CheckIn
	for _, c := range r.checkins {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCheckInRepo) ListCommittedByCourse(_ context.Context, _ string) ([]CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CheckIn
	for _, c := range r.checkins {
		if c.Committed {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeCourses struct {
	courses map[string]course.Course
}

func (d *fakeCourses) GetByID(_ context.Context, id string) (course.Course, error) {
	c, ok := d.courses[id]
	if !ok {
		return course.Course{}, apperr.NotFound("course not found")
	}
	return c, nil
}

type fakeStudents struct {
	students map[string]student.Student // keyed by upper-cased matric
}

func (d *fakeStudents) GetByMatric(_ context.Context, matric string) (student.Student, error) {
	st, ok := d.students[strings.ToUpper(matric)]
	if !ok {
		return student.Student{}, apperr.NotFound("student not found")
	}
	return st, nil
}

// fakeGate scripts the face capability. match decides Compare; faces
// and enrollFaces the detection counts; errs inject failures per call.
type fakeGate struct {
	faces       int
	enrollFaces int
	match       bool

	detectErr  error
	encodeErr  error
	compareErr error

	detectCalls int
}

func (g *fakeGate) DetectFaces(_ context.Context, imageRef string) ([]faceclient.Region, error) {
	g.detectCalls++
	if g.detectErr != nil {
		return nil, g.detectErr
	}
	if strings.HasPrefix(imageRef, "enroll") {
		return make([]faceclient.Region, g.enrollFaces), nil
	}
	return make([]faceclient.Region, g.faces), nil
}

func (g *fakeGate) EncodeFace(_ context.Context, _ string, _ faceclient.Region) (faceclient.Encoding, error) {
	if g.encodeErr != nil {
		return nil, g.encodeErr
	}
	return faceclient.Encoding{0.1, 0.2}, nil
}

func (g *fakeGate) Compare(_ context.Context, _, _ faceclient.Encoding, _ float64) (bool, error) {
	if g.compareErr != nil {
		return false, g.compareErr
	}
	return g.match, nil
}

type fakePublisher struct {
	messages []queue.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg queue.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

// timeoutErr satisfies net.Error the way an HTTP client timeout does.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "request timed out" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
