package auth

import (
	"context"
	"sync"
)

var _ UserStore = (*MemUserStore)(nil)

// MemUserStore is an in-memory UserStore used by tests and local development.
type MemUserStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{users: make(map[string]*User)}
}

func (s *MemUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrUserExists
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemUserStore) Find(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
