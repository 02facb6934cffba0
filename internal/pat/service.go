package pat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kobukuro/fcsvault/internal/ids"
)

// Service provides token lifecycle operations: issuance, listing, revocation.
type Service struct {
	store     Store
	hierarchy *Hierarchy
	now       func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, hierarchy *Hierarchy, opts ...ServiceOption) *Service {
	s := &Service{store: store, hierarchy: hierarchy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a token for a user with the given scope grants. The returned
// raw value is shown exactly once; only its digest and prefix are persisted.
// A nil expiry means the token does not expire.
func (s *Service) Issue(ctx context.Context, userID, name string, scopeNames []string, expiresAt *time.Time) (string, *Token, error) {
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return "", nil, fmt.Errorf("%w: user id and token name are required", ErrInvalidInput)
	}
	if !s.hierarchy.Known(scopeNames) {
		return "", nil, fmt.Errorf("%w: unknown scope in grant list", ErrInvalidInput)
	}
	if expiresAt != nil && expiresAt.Before(s.now()) {
		return "", nil, fmt.Errorf("%w: expiry is in the past", ErrInvalidInput)
	}

	raw, prefix, digest, err := Generate()
	if err != nil {
		return "", nil, err
	}
	token := &Token{
		ID:        ids.New(),
		UserID:    userID,
		Name:      name,
		Prefix:    prefix,
		Digest:    digest,
		CreatedAt: s.now().UTC(),
		ExpiresAt: expiresAt,
	}
	if err := s.store.Tokens(ctx).Create(ctx, token, scopeNames); err != nil {
		return "", nil, err
	}
	return raw, token, nil
}

// Get returns a token owned by userID.
func (s *Service) Get(ctx context.Context, userID, tokenID string) (*Token, error) {
	token, err := s.store.Tokens(ctx).Find(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.UserID != userID {
		return nil, ErrNotFound
	}
	return token, nil
}

// List returns all tokens of a user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*Token, error) {
	return s.store.Tokens(ctx).ListByUser(ctx, userID)
}

// Grants returns the scopes granted to a token owned by userID.
func (s *Service) Grants(ctx context.Context, userID, tokenID string) ([]Scope, error) {
	if _, err := s.Get(ctx, userID, tokenID); err != nil {
		return nil, err
	}
	return s.store.Tokens(ctx).Grants(ctx, tokenID)
}

// Revoke flags a token as revoked. The record itself is kept: audit records
// reference it, so revocation is a soft delete.
func (s *Service) Revoke(ctx context.Context, userID, tokenID string) error {
	if _, err := s.Get(ctx, userID, tokenID); err != nil {
		return err
	}
	return s.store.Tokens(ctx).Revoke(ctx, tokenID)
}

// Scopes returns the full scope table.
func (s *Service) Scopes(ctx context.Context) ([]Scope, error) {
	return s.store.Scopes(ctx).All(ctx)
}
