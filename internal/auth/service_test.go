package auth

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"classattend/internal/apperr"
)

type fakeRepo struct {
	users    map[string]User    // keyed by email
	sessions map[string]Session // keyed by token
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[string]User),
		sessions: make(map[string]Session),
	}
}

func (r *fakeRepo) CreateUser(_ context.Context, usr User) error {
	if _, ok := r.users[usr.Email]; ok {
		return apperr.Conflict("a user with this email already exists")
	}
	r.users[usr.Email] = usr
	return nil
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	usr, ok := r.users[email]
	if !ok {
		return User{}, apperr.NotFound("user not found")
	}
	return usr, nil
}

func (r *fakeRepo) CreateSession(_ context.Context, s Session) error {
	r.sessions[s.Token] = s
	return nil
}

func (r *fakeRepo) GetSession(_ context.Context, token string) (Session, User, error) {
	sess, ok := r.sessions[token]
	if !ok {
		return Session{}, User{}, apperr.NotFound("session not found")
	}
	for _, usr := range r.users {
		if usr.ID == sess.UserID {
			return sess, usr, nil
		}
	}
	return Session{}, User{}, apperr.NotFound("session not found")
}

func (r *fakeRepo) DeleteSession(_ context.Context, token string) error {
	delete(r.sessions, token)
	return nil
}

func (r *fakeRepo) addUser(t *testing.T, email, password, role string, active bool) User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	usr := User{
		ID:           email + "-id",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     active,
	}
	r.users[email] = usr
	return usr
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantKind apperr.Kind
	}{
		{name: "missing email", email: "", password: "secret", wantKind: apperr.KindValidation},
		{name: "missing password", email: "a@b.c", password: "", wantKind: apperr.KindValidation},
		{name: "unknown email", email: "nobody@uni.edu", password: "secret", wantKind: apperr.KindAuthentication},
		{name: "wrong password", email: "lect@uni.edu", password: "wrong", wantKind: apperr.KindAuthentication},
		{name: "inactive user", email: "gone@uni.edu", password: "secret", wantKind: apperr.KindAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.addUser(t, "lect@uni.edu", "secret", RoleLecturer, true)
			repo.addUser(t, "gone@uni.edu", "secret", RoleLecturer, false)
			svc := NewService(repo, time.Hour)

			_, err := svc.Login(ctx, tt.email, tt.password)
			if apperr.KindOf(err) != tt.wantKind {
				t.Errorf("Login() err = %v, want kind %v", err, tt.wantKind)
			}
		})
	}

	t.Run("success issues resolvable token", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addUser(t, "lect@uni.edu", "secret", RoleLecturer, true)
		svc := NewService(repo, time.Hour)

		token, err := svc.Login(ctx, "  Lect@Uni.edu ", "secret")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		id, err := svc.Resolve(ctx, token)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if id.Email != "lect@uni.edu" || id.Role != RoleLecturer {
			t.Errorf("Resolve() = %+v", id)
		}
	})
}

func TestRegisterLecturer(t *testing.T) {
	ctx := context.Background()

	t.Run("signs up and logs straight in", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo, time.Hour)

		token, err := svc.RegisterLecturer(ctx, "new@uni.edu", "secret")
		if err != nil {
			t.Fatalf("RegisterLecturer() error = %v", err)
		}
		id, err := svc.Resolve(ctx, token)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !id.IsLecturer() {
			t.Errorf("new account role = %q, want lecturer", id.Role)
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addUser(t, "new@uni.edu", "secret", RoleLecturer, true)
		svc := NewService(repo, time.Hour)

		_, err := svc.RegisterLecturer(ctx, "new@uni.edu", "other")
		if !apperr.IsKind(err, apperr.KindConflict) {
			t.Errorf("RegisterLecturer() err = %v, want conflict", err)
		}
	})
}

func TestResolveExpiry(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.addUser(t, "lect@uni.edu", "secret", RoleLecturer, true)
	svc := NewService(repo, time.Hour)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return now }

	token, err := svc.Login(ctx, "lect@uni.edu", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Still valid just inside the TTL.
	now = now.Add(59 * time.Minute)
	if _, err := svc.Resolve(ctx, token); err != nil {
		t.Fatalf("Resolve() before expiry error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	_, err = svc.Resolve(ctx, token)
	if !apperr.IsKind(err, apperr.KindAuthentication) {
		t.Fatalf("Resolve() after expiry err = %v, want authentication", err)
	}
	if _, ok := repo.sessions[token]; ok {
		t.Error("expired session should be deleted on resolve")
	}
}

func TestResolveUnknownToken(t *testing.T) {
	svc := NewService(newFakeRepo(), time.Hour)
	_, err := svc.Resolve(context.Background(), "NOTATOKEN1234")
	if !apperr.IsKind(err, apperr.KindAuthentication) {
		t.Errorf("Resolve() err = %v, want authentication", err)
	}
}

func TestLecturerOnly(t *testing.T) {
	if err := LecturerOnly(Identity{Role: RoleLecturer}); err != nil {
		t.Errorf("LecturerOnly(lecturer) = %v", err)
	}
	err := LecturerOnly(Identity{Role: RoleStudent})
	if !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Errorf("LecturerOnly(student) = %v, want authorization", err)
	}
}
