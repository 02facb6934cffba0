package pat

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store used by tests and local development.
type MemStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token
	grants map[string][]int64 // token id -> scope ids
	scopes []Scope
}

// NewMemStore constructs a MemStore seeded with the given scope table.
func NewMemStore(scopes []Scope) *MemStore {
	return &MemStore{
		tokens: make(map[string]*Token),
		grants: make(map[string][]int64),
		scopes: append([]Scope(nil), scopes...),
	}
}

func (s *MemStore) Tokens(context.Context) TokenStore { return (*memTokens)(s) }
func (s *MemStore) Scopes(context.Context) ScopeStore { return (*memScopes)(s) }

type memTokens MemStore

func (s *memTokens) Create(_ context.Context, t *Token, scopeNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, name := range scopeNames {
		found := false
		for _, sc := range s.scopes {
			if sc.Name == name {
				ids = append(ids, sc.ID)
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidInput
		}
	}
	cp := *t
	s.tokens[t.ID] = &cp
	s.grants[t.ID] = ids
	return nil
}

func (s *memTokens) Find(_ context.Context, id string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTokens) FindByPrefix(_ context.Context, prefix string) ([]*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Token
	for _, t := range s.tokens {
		if t.Prefix == prefix {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memTokens) ListByUser(_ context.Context, userID string) ([]*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Token
	for _, t := range s.tokens {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memTokens) Grants(_ context.Context, tokenID string) ([]Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Scope
	for _, id := range s.grants[tokenID] {
		for _, sc := range s.scopes {
			if sc.ID == id {
				out = append(out, sc)
			}
		}
	}
	return out, nil
}

func (s *memTokens) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	t.Revoked = true
	return nil
}

func (s *memTokens) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		t.LastUsedAt = &at
	}
	return nil
}

type memScopes MemStore

func (s *memScopes) All(context.Context) ([]Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Scope(nil), s.scopes...), nil
}
