package course

import (
	"context"
	"strings"
	"testing"

	"classattend/internal/apperr"
	"classattend/internal/auth"
)

type fakeRepo struct {
	courses map[string]Course // keyed by id
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{courses: make(map[string]Course)}
}

func (r *fakeRepo) Create(_ context.Context, c Course) error {
	r.courses[c.ID] = c
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (Course, error) {
	c, ok := r.courses[id]
	if !ok {
		return Course{}, apperr.NotFound("course not found")
	}
	return c, nil
}

func (r *fakeRepo) GetByLecturerAndCode(_ context.Context, lecturerID, code string) (Course, error) {
	for _, c := range r.courses {
		if c.LecturerID == lecturerID && c.Code == code {
			return c, nil
		}
	}
	return Course{}, apperr.NotFound("course not found")
}

func (r *fakeRepo) ListByLecturer(_ context.Context, lecturerID string) ([]Course, error) {
	var out []Course
	for _, c := range r.courses {
		if c.LecturerID == lecturerID {
			out = append(out, c)
		}
	}
	return out, nil
}

var lecturer = auth.Identity{UserID: "lect-1", Email: "lect@uni.edu", Role: auth.RoleLecturer}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("uppercases the code", func(t *testing.T) {
		svc := NewService(newFakeRepo())
		crs, err := svc.Create(ctx, lecturer, "Distributed Systems", " cs402 ")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if crs.Code != "CS402" {
			t.Errorf("code = %q, want CS402", crs.Code)
		}
		if crs.LecturerID != lecturer.UserID {
			t.Errorf("lecturer id = %q", crs.LecturerID)
		}
	})

	t.Run("rejects students", func(t *testing.T) {
		svc := NewService(newFakeRepo())
		student := auth.Identity{UserID: "stu-1", Role: auth.RoleStudent}
		_, err := svc.Create(ctx, student, "Distributed Systems", "CS402")
		if !apperr.IsKind(err, apperr.KindAuthorization) {
			t.Errorf("Create() err = %v, want authorization", err)
		}
	})

	t.Run("requires title and code", func(t *testing.T) {
		svc := NewService(newFakeRepo())
		if _, err := svc.Create(ctx, lecturer, "", "CS402"); !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("missing title err = %v", err)
		}
		if _, err := svc.Create(ctx, lecturer, "Distributed Systems", "  "); !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("missing code err = %v", err)
		}
	})

	t.Run("duplicate code per lecturer conflicts", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo)
		if _, err := svc.Create(ctx, lecturer, "Distributed Systems", "CS402"); err != nil {
			t.Fatalf("first Create() error = %v", err)
		}
		_, err := svc.Create(ctx, lecturer, "Other Title", "cs402")
		if !apperr.IsKind(err, apperr.KindConflict) {
			t.Fatalf("Create() err = %v, want conflict", err)
		}
		if !strings.Contains(err.Error(), "Distributed Systems") {
			t.Errorf("conflict message should name the existing course, got %q", err.Error())
		}
	})

	t.Run("same code under another lecturer is fine", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo)
		if _, err := svc.Create(ctx, lecturer, "Distributed Systems", "CS402"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		other := auth.Identity{UserID: "lect-2", Role: auth.RoleLecturer}
		if _, err := svc.Create(ctx, other, "Distributed Systems", "CS402"); err != nil {
			t.Errorf("Create() under other lecturer error = %v", err)
		}
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	crs, err := svc.Create(ctx, lecturer, "Distributed Systems", "CS402")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(ctx, lecturer, crs.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != crs.ID {
		t.Errorf("Get() = %+v", got)
	}

	other := auth.Identity{UserID: "lect-2", Role: auth.RoleLecturer}
	if _, err := svc.Get(ctx, other, crs.ID); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Errorf("Get() by other lecturer err = %v, want authorization", err)
	}

	if _, err := svc.Get(ctx, lecturer, "missing-id"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("Get() missing err = %v, want not found", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	if _, err := svc.Create(ctx, lecturer, "Distributed Systems", "CS402"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, lecturer, "Compilers", "CS441"); err != nil {
		t.Fatal(err)
	}

	courses, err := svc.List(ctx, lecturer)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(courses) != 2 {
		t.Errorf("List() returned %d courses, want 2", len(courses))
	}

	student := auth.Identity{UserID: "stu-1", Role: auth.RoleStudent}
	if _, err := svc.List(ctx, student); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Errorf("List() by student err = %v, want authorization", err)
	}
}
