// Package auth owns the signed-in user: login, signup, logout and the
// account settings flows. The token doubles as the API client's bearer.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 6

// ErrNotSignedIn is returned by operations that need a current user.
var ErrNotSignedIn = errors.New("not signed in")

// Store persists the session between runs.
type Store interface {
	SaveSession(token string, user api.User) error
	LoadSession() (string, *api.User, error)
	ClearSession() error
}

// Backend is the subset of the API the service calls.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, u api.User) (*api.User, error)
	UpdateProfile(ctx context.Context, userID int64, name string) (*api.User, error)
	VerifyPassword(ctx context.Context, userID int64, password string) error
	ChangePassword(ctx context.Context, userID int64, newPassword string) error
	DeleteUser(ctx context.Context, userID int64) error
}

// Service is the auth state holder. It implements api.TokenSource.
type Service struct {
	backend Backend
	store   Store
	log     *slog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	token string
	user  *api.User
}

// New restores any persisted session whose token has not expired.
func New(backend Backend, store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{backend: backend, store: store, log: log, now: time.Now}
	s.restore()
	return s
}

// SetClock replaces the time source and re-evaluates the stored session.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.restore()
}

func (s *Service) restore() {
	token, user, err := s.store.LoadSession()
	if err != nil {
		s.log.Warn("load session", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
	if token == "" || user == nil {
		return
	}
	if exp, ok := TokenExpiry(token); ok && !exp.After(s.now()) {
		s.log.Info("stored session expired", "exp", exp)
		return
	}
	s.token, s.user = token, user
}

// TokenExpiry reads the exp claim without verifying the signature; the
// console never holds the signing key.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Token implements api.TokenSource.
func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Current returns the signed-in user, or nil.
func (s *Service) Current() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login authenticates and persists the session.
func (s *Service) Login(ctx context.Context, email, password string) (*api.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Invalid("email", "required")
	}
	if password == "" {
		return nil, apperr.Invalid("password", "required")
	}
	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSession(resp.Token, resp.User); err != nil {
		s.log.Warn("persist session", "err", err)
	}
	s.mu.Lock()
	u := resp.User
	s.token, s.user = resp.Token, &u
	s.mu.Unlock()
	s.log.Info("signed in", "user_id", u.ID)
	return &u, nil
}

// Register validates the form and creates the account. It does not sign in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*api.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return nil, apperr.Invalid("name", "required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Invalid("email", "must be a valid address")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperr.Invalid("password", "must be at least 6 characters")
	}
	return s.backend.Register(ctx, api.User{Name: name, Email: email, Password: password})
}

// Logout forgets the session locally.
func (s *Service) Logout() {
	if err := s.store.ClearSession(); err != nil {
		s.log.Warn("clear session", "err", err)
	}
	s.mu.Lock()
	s.token, s.user = "", nil
	s.mu.Unlock()
}

// UpdateProfile renames the current user.
func (s *Service) UpdateProfile(ctx context.Context, name string) (*api.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name", "required")
	}
	u, token := s.Current(), s.Token()
	if u == nil {
		return nil, ErrNotSignedIn
	}
	if _, err := s.backend.UpdateProfile(ctx, u.ID, name); err != nil {
		return nil, err
	}
	u.Name = name
	if err := s.store.SaveSession(token, *u); err != nil {
		s.log.Warn("persist session", "err", err)
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return u, nil
}

// VerifyPassword checks the current user's password.
func (s *Service) VerifyPassword(ctx context.Context, password string) error {
	u := s.Current()
	if u == nil {
		return ErrNotSignedIn
	}
	return s.backend.VerifyPassword(ctx, u.ID, password)
}

// ChangePassword validates the form, verifies the current password, sets
// the new one and signs out.
func (s *Service) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if next != confirm {
		return apperr.Invalid("confirm", "new passwords do not match")
	}
	if utf8.RuneCountInString(next) < MinPasswordLength {
		return apperr.Invalid("password", "must be at least 6 characters")
	}
	u := s.Current()
	if u == nil {
		return ErrNotSignedIn
	}
	if err := s.backend.VerifyPassword(ctx, u.ID, current); err != nil {
		return err
	}
	if err := s.backend.ChangePassword(ctx, u.ID, next); err != nil {
		return err
	}
	s.Logout()
	return nil
}

// DeleteAccount removes the account and signs out.
func (s *Service) DeleteAccount(ctx context.Context) error {
	u := s.Current()
	if u == nil {
		return ErrNotSignedIn
	}
	if err := s.backend.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	s.Logout()
	return nil
}
