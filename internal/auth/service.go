package auth

import (
	"context"
	"strings"
	"time"

	"github.com/kobukuro/fcsvault/internal/ids"
)

// Service implements account registration and session login.
type Service struct {
	users    UserStore
	sessions *SessionManager
	now      func() time.Time
}

func NewService(users UserStore, sessions *SessionManager) *Service {
	return &Service{users: users, sessions: sessions, now: time.Now}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") || len(password) < 8 {
		return nil, ErrInvalidInput
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns a session token. Lookup and compare
// failures collapse to one error so callers cannot probe for accounts.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	session, err := s.sessions.Issue(u.ID)
	if err != nil {
		return "", nil, err
	}
	return session, u, nil
}
