package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Migrate applies the schema. Statements are idempotent so it runs on
// every startup.
func (d *DB) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		token      TEXT PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS courses (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		code        TEXT NOT NULL,
		lecturer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (lecturer_id, code)
	);

	CREATE TABLE IF NOT EXISTS attendance_sessions (
		id           UUID PRIMARY KEY,
		course_id    UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		code         TEXT NOT NULL,
		lat          TEXT NOT NULL DEFAULT '',
		lng          TEXT NOT NULL DEFAULT '',
		is_open      BOOLEAN NOT NULL DEFAULT TRUE,
		is_committed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_sessions_code
		ON attendance_sessions (UPPER(code));
	CREATE INDEX IF NOT EXISTS idx_attendance_sessions_course
		ON attendance_sessions (course_id);

	CREATE TABLE IF NOT EXISTS students (
		id            UUID PRIMARY KEY,
		matric_number TEXT UNIQUE NOT NULL,
		photo_ref     TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_students_matric
		ON students (UPPER(matric_number));

	CREATE TABLE IF NOT EXISTS checkins (
		id           UUID PRIMARY KEY,
		student_id   UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		session_id   UUID NOT NULL REFERENCES attendance_sessions(id) ON DELETE CASCADE,
		lat          TEXT NOT NULL DEFAULT '',
		lng          TEXT NOT NULL DEFAULT '',
		distance     DOUBLE PRECISION NOT NULL DEFAULT 0,
		selfie_ref   TEXT NOT NULL,
		committed    BOOLEAN NOT NULL DEFAULT FALSE,
		finalized_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT checkins_student_session_key UNIQUE (student_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_checkins_session ON checkins (session_id);
	`
	_, err := d.Client.ExecContext(ctx, schema)
	return err
}
