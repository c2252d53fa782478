package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
)

type memStore struct {
	token string
	user  *api.User
}

func (m *memStore) SaveSession(token string, user api.User) error {
	m.token, m.user = token, &user
	return nil
}

func (m *memStore) LoadSession() (string, *api.User, error) { return m.token, m.user, nil }

func (m *memStore) ClearSession() error {
	m.token, m.user = "", nil
	return nil
}

type fakeBackend struct {
	token       string
	verifyErr   error
	changed     string
	deleted     int64
	registered  *api.User
	renamed     string
	verifyCalls int
}

func (f *fakeBackend) Login(_ context.Context, email, _ string) (*api.LoginResponse, error) {
	return &api.LoginResponse{Token: f.token, User: api.User{ID: 7, Name: "Mina", Email: email}}, nil
}

func (f *fakeBackend) Register(_ context.Context, u api.User) (*api.User, error) {
	f.registered = &u
	return &u, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, _ int64, name string) (*api.User, error) {
	f.renamed = name
	return &api.User{Name: name}, nil
}

func (f *fakeBackend) VerifyPassword(context.Context, int64, string) error {
	f.verifyCalls++
	return f.verifyErr
}

func (f *fakeBackend) ChangePassword(_ context.Context, _ int64, p string) error {
	f.changed = p
	return nil
}

func (f *fakeBackend) DeleteUser(_ context.Context, id int64) error {
	f.deleted = id
	return nil
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "mina@example.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestLoginPersistsAndRestores(t *testing.T) {
	store := &memStore{}
	backend := &fakeBackend{token: signed(t, time.Now().Add(time.Hour))}
	s := New(backend, store, nil)

	if s.Current() != nil {
		t.Fatalf("no user expected before login")
	}
	if _, err := s.Login(context.Background(), "mina@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Token() != backend.token || store.token != backend.token {
		t.Fatalf("token not held and persisted")
	}

	restored := New(backend, store, nil)
	if u := restored.Current(); u == nil || u.ID != 7 {
		t.Fatalf("session not restored: %+v", u)
	}

	restored.Logout()
	if restored.Current() != nil || restored.Token() != "" || store.token != "" {
		t.Fatalf("logout should clear everything")
	}
}

func TestExpiredTokenIsNotRestored(t *testing.T) {
	store := &memStore{token: signed(t, time.Now().Add(-time.Minute)), user: &api.User{ID: 1}}
	s := New(&fakeBackend{}, store, nil)
	if s.Current() != nil {
		t.Fatalf("expired session restored")
	}

	opaque := &memStore{token: "not-a-jwt", user: &api.User{ID: 2}}
	if New(&fakeBackend{}, opaque, nil).Current() == nil {
		t.Fatalf("token without readable exp should be kept")
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signed(t, exp))
	if !ok || !got.Equal(exp) {
		t.Fatalf("TokenExpiry = %v %v, want %v", got, ok, exp)
	}
	if _, ok := TokenExpiry("garbage"); ok {
		t.Fatalf("garbage token should have no expiry")
	}
}

func TestRegisterValidation(t *testing.T) {
	s := New(&fakeBackend{}, &memStore{}, nil)
	ctx := context.Background()
	cases := []struct{ name, email, password, field string }{
		{"  ", "a@b.c", "secret1", "name"},
		{"Mina", "no-at-sign", "secret1", "email"},
		{"Mina", "a@b.c", "12345", "password"},
		{"Mina", "a@b.c", "가나", "password"},
	}
	for _, c := range cases {
		_, err := s.Register(ctx, c.name, c.email, c.password)
		ve, ok := err.(*apperr.ValidationError)
		if !ok || ve.Field != c.field {
			t.Errorf("Register(%q,%q,%q) = %v, want validation error on %s", c.name, c.email, c.password, err, c.field)
		}
	}
	b := &fakeBackend{}
	s = New(b, &memStore{}, nil)
	if _, err := s.Register(ctx, " Mina ", "a@b.c", "secret1"); err != nil || b.registered.Name != "Mina" {
		t.Fatalf("valid registration failed: %v", err)
	}
	if _, err := s.Register(ctx, "Mina", "a@b.c", "가나다라마바"); err != nil {
		t.Fatalf("six Hangul characters should pass: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{token: "tok"}
	s := New(b, &memStore{}, nil)
	_, _ = s.Login(ctx, "m@x.io", "old-pass")

	if err := s.ChangePassword(ctx, "old-pass", "newpass1", "newpass2"); !apperr.IsValidation(err) {
		t.Fatalf("mismatch should be a validation error, got %v", err)
	}
	if err := s.ChangePassword(ctx, "old-pass", "short", "short"); !apperr.IsValidation(err) {
		t.Fatalf("short password should be a validation error, got %v", err)
	}
	if b.verifyCalls != 0 {
		t.Fatalf("validation must happen before any request")
	}

	b.verifyErr = &apperr.AuthError{Op: "verify", Status: 401}
	if err := s.ChangePassword(ctx, "wrong", "newpass1", "newpass1"); !apperr.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if s.Current() == nil {
		t.Fatalf("failed change must keep the session")
	}
	if err := s.ChangePassword(ctx, "old-pass", "가나다", "가나다"); !apperr.IsValidation(err) {
		t.Fatalf("three characters are too short whatever their byte length, got %v", err)
	}

	b.verifyErr = nil
	if err := s.ChangePassword(ctx, "old-pass", "newpass1", "newpass1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if b.changed != "newpass1" || s.Current() != nil {
		t.Fatalf("password change should update and sign out")
	}
}

func TestProfileAndDelete(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{token: "tok"}
	store := &memStore{}
	s := New(b, store, nil)

	if _, err := s.UpdateProfile(ctx, "Nabi"); err != ErrNotSignedIn {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	_, _ = s.Login(ctx, "m@x.io", "pw1234")
	if _, err := s.UpdateProfile(ctx, "   "); !apperr.IsValidation(err) {
		t.Fatalf("blank name should fail validation, got %v", err)
	}
	u, err := s.UpdateProfile(ctx, "Nabi")
	if err != nil || u.Name != "Nabi" || store.user.Name != "Nabi" {
		t.Fatalf("UpdateProfile: %v %+v", err, u)
	}

	if err := s.DeleteAccount(ctx); err != nil || b.deleted != 7 || s.Current() != nil {
		t.Fatalf("DeleteAccount: %v deleted=%d", err, b.deleted)
	}
}
