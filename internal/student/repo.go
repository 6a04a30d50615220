package student

import (
	"context"
	"database/sql"
	"errors"

	"classattend/internal/apperr"
	"classattend/internal/store"
)

// PgRepository persists students in Postgres.
type PgRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PgRepository {
	return &PgRepository{db: db}
}

// Create inserts a student; duplicate matric numbers map to a conflict.
func (r *PgRepository) Create(ctx context.Context, st Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, matric_number, photo_ref, created_at)
		VALUES ($1, $2, $3, $4)
	`, st.ID, st.MatricNumber, st.PhotoRef, st.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("this student matric number has been enrolled")
		}
		return apperr.Unexpected(err)
	}
	return nil
}

// GetByMatric looks a student up case-insensitively.
func (r *PgRepository) GetByMatric(ctx context.Context, matric string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, matric_number, photo_ref, created_at
		FROM students WHERE UPPER(matric_number) = UPPER($1)
	`, matric)
	var st Student
	if err := row.Scan(&st.ID, &st.MatricNumber, &st.PhotoRef, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, apperr.NotFound("student not enrolled")
		}
		return Student{}, apperr.Unexpected(err)
	}
	return st, nil
}

// Delete removes a student; check-ins cascade.
func (r *PgRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return apperr.Unexpected(err)
	}
	return nil
}
