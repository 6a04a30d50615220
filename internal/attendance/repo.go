package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classattend/internal/apperr"
	"classattend/internal/store"
)

// PgSessionRepository persists attendance sessions in Postgres.
type PgSessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a repo.
func NewSessionRepository(db *sql.DB) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

const sessionColumns = `
	s.id, s.course_id, s.code, s.lat, s.lng, s.is_open, s.is_committed, s.created_at,
	c.title, c.code,
	(SELECT COUNT(*) FROM checkins k WHERE k.session_id = s.id) AS checkins
`

// Create inserts a session.
func (r *PgSessionRepository) Create(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, course_id, code, lat, lng, is_open, is_committed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.CourseID, s.Code, s.Lat, s.Lng, s.IsOpen, s.IsCommitted, s.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			// Generated 6-char codes can collide; the caller may retry
			// with a fresh code.
			return apperr.Conflict("attendance code collision")
		}
		return apperr.Unexpected(err)
	}
	return nil
}

// GetByID returns one session.
func (r *PgSessionRepository) GetByID(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM attendance_sessions s
		JOIN courses c ON c.id = s.course_id
		WHERE s.id = $1
	`, id)
	return scanSession(row)
}

// GetByCode matches the check-in code case-insensitively.
func (r *PgSessionRepository) GetByCode(ctx context.Context, code string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM attendance_sessions s
		JOIN courses c ON c.id = s.course_id
		WHERE UPPER(s.code) = UPPER($1)
	`, code)
	return scanSession(row)
}

// ListByCourse returns a course's sessions, oldest first.
func (r *PgSessionRepository) ListByCourse(ctx context.Context, courseID string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM attendance_sessions s
		JOIN courses c ON c.id = s.course_id
		WHERE s.course_id = $1
		ORDER BY s.created_at
	`, courseID)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	defer rows.Close()

	var res []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(
			&s.ID, &s.CourseID, &s.Code, &s.Lat, &s.Lng, &s.IsOpen, &s.IsCommitted, &s.CreatedAt,
			&s.CourseTitle, &s.CourseCode, &s.CheckIns,
		); err != nil {
			return nil, apperr.Unexpected(err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err)
	}
	return res, nil
}

// SetState updates the two lifecycle flags. Last writer wins.
func (r *PgSessionRepository) SetState(ctx context.Context, id string, open, committed bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions SET is_open = $2, is_committed = $3 WHERE id = $1
	`, id, open, committed)
	if err != nil {
		return apperr.Unexpected(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("attendance not found")
	}
	return nil
}

// Delete removes a session; its check-ins cascade.
func (r *PgSessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_sessions WHERE id = $1`, id); err != nil {
		return apperr.Unexpected(err)
	}
	return nil
}

func scanSession(row *sql.Row) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.CourseID, &s.Code, &s.Lat, &s.Lng, &s.IsOpen, &s.IsCommitted, &s.CreatedAt,
		&s.CourseTitle, &s.CourseCode, &s.CheckIns,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, apperr.NotFound("attendance not found")
		}
		return Session{}, apperr.Unexpected(err)
	}
	return s, nil
}

// PgCheckInRepository persists check-ins in Postgres.
type PgCheckInRepository struct {
	db *sql.DB
}

// NewCheckInRepository creates a repo.
func NewCheckInRepository(db *sql.DB) *PgCheckInRepository {
	return &PgCheckInRepository{db: db}
}

// Insert writes a provisional check-in. The (student, session) unique
// constraint turns a duplicate race into a conflict error.
func (r *PgCheckInRepository) Insert(ctx context.Context, c CheckIn) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkins (id, student_id, session_id, lat, lng, distance, selfie_ref, committed, finalized_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NULL, $8)
	`, c.ID, c.StudentID, c.SessionID, c.Lat, c.Lng, c.Distance, c.SelfieRef, c.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("this student is already on the list")
		}
		return apperr.Unexpected(err)
	}
	return nil
}

// Exists reports whether a (student, session) check-in exists.
func (r *PgCheckInRepository) Exists(ctx context.Context, studentID, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM checkins WHERE student_id = $1 AND session_id = $2)
	`, studentID, sessionID).Scan(&exists)
	if err != nil {
		return false, apperr.Unexpected(err)
	}
	return exists, nil
}

// Delete removes a provisional check-in after a gate rejection.
func (r *PgCheckInRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkins WHERE id = $1`, id); err != nil {
		return apperr.Unexpected(err)
	}
	return nil
}

// Finalize promotes a provisional check-in to committed.
func (r *PgCheckInRepository) Finalize(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE checkins SET committed = TRUE, finalized_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return apperr.Unexpected(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("check-in not found")
	}
	return nil
}

const checkinColumns = `
	k.id, k.student_id, k.session_id, st.matric_number,
	k.lat, k.lng, k.distance, k.selfie_ref, k.committed, k.finalized_at, k.created_at
`

// ListBySession returns all check-ins for one session.
func (r *PgCheckInRepository) ListBySession(ctx context.Context, sessionID string) ([]CheckIn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+checkinColumns+`
		FROM checkins k
		JOIN students st ON st.id = k.student_id
		WHERE k.session_id = $1
		ORDER BY k.created_at
	`, sessionID)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	return collectCheckIns(rows)
}

// ListCommittedByCourse returns every committed check-in across a
// course's sessions.
func (r *PgCheckInRepository) ListCommittedByCourse(ctx context.Context, courseID string) ([]CheckIn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+checkinColumns+`
		FROM checkins k
		JOIN students st ON st.id = k.student_id
		JOIN attendance_sessions s ON s.id = k.session_id
		WHERE s.course_id = $1 AND k.committed
		ORDER BY k.created_at
	`, courseID)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	return collectCheckIns(rows)
}

func collectCheckIns(rows *sql.Rows) ([]CheckIn, error) {
	defer rows.Close()
	var res []CheckIn
	for rows.Next() {
		var c CheckIn
		if err := rows.Scan(
			&c.ID, &c.StudentID, &c.SessionID, &c.MatricNumber,
			&c.Lat, &c.Lng, &c.Distance, &c.SelfieRef, &c.Committed, &c.FinalizedAt, &c.CreatedAt,
		); err != nil {
			return nil, apperr.Unexpected(err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err)
	}
	return res, nil
}
