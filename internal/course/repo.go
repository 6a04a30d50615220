package course

import (
	"context"
	"database/sql"
	"errors"

	"classattend/internal/apperr"
	"classattend/internal/store"
)

// PgRepository persists courses in Postgres.
type PgRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PgRepository {
	return &PgRepository{db: db}
}

// Create inserts a course. The (lecturer_id, code) unique constraint
// backs up the service-level duplicate check.
func (r *PgRepository) Create(ctx context.Context, c Course) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, title, code, lecturer_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Title, c.Code, c.LecturerID, c.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("a course with the same code exists")
		}
		return apperr.Unexpected(err)
	}
	return nil
}

const courseColumns = `
	c.id, c.title, c.code, c.lecturer_id, c.created_at,
	(SELECT COUNT(*) FROM attendance_sessions a WHERE a.course_id = c.id) AS sessions
`

// GetByID returns one course with its session count.
func (r *PgRepository) GetByID(ctx context.Context, id string) (Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+courseColumns+` FROM courses c WHERE c.id = $1
	`, id)
	return scanCourse(row)
}

// GetByLecturerAndCode returns the lecturer's course with the given code.
func (r *PgRepository) GetByLecturerAndCode(ctx context.Context, lecturerID, code string) (Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+courseColumns+` FROM courses c
		WHERE c.lecturer_id = $1 AND c.code = $2
	`, lecturerID, code)
	return scanCourse(row)
}

// ListByLecturer returns all courses owned by a lecturer.
func (r *PgRepository) ListByLecturer(ctx context.Context, lecturerID string) ([]Course, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+courseColumns+` FROM courses c
		WHERE c.lecturer_id = $1
		ORDER BY c.created_at
	`, lecturerID)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	defer rows.Close()

	var res []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Code, &c.LecturerID, &c.CreatedAt, &c.Sessions); err != nil {
			return nil, apperr.Unexpected(err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unexpected(err)
	}
	return res, nil
}

func scanCourse(row *sql.Row) (Course, error) {
	var c Course
	if err := row.Scan(&c.ID, &c.Title, &c.Code, &c.LecturerID, &c.CreatedAt, &c.Sessions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, apperr.NotFound("course not found")
		}
		return Course{}, apperr.Unexpected(err)
	}
	return c, nil
}
