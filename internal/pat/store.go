package pat

import (
	"context"
	"time"
)

// Store describes persistence operations required by the PAT subsystem.
type Store interface {
	Tokens(ctx context.Context) TokenStore
	Scopes(ctx context.Context) ScopeStore
}

// TokenStore manages token records and their scope grants.
type TokenStore interface {
	// Create persists a token and its grants. Grants reference seeded
	// scopes by name; a nonexistent scope is a referential-integrity error.
	Create(ctx context.Context, t *Token, scopeNames []string) error
	Find(ctx context.Context, id string) (*Token, error)
	// FindByPrefix returns all tokens sharing a display prefix. The caller
	// resolves the exact record by digest comparison.
	FindByPrefix(ctx context.Context, prefix string) ([]*Token, error)
	ListByUser(ctx context.Context, userID string) ([]*Token, error)
	// Grants returns the scopes granted to a token.
	Grants(ctx context.Context, tokenID string) ([]Scope, error)
	// Revoke soft-deletes: the record stays referenced by audit records.
	Revoke(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// ScopeStore reads the administratively seeded scope table.
type ScopeStore interface {
	All(ctx context.Context) ([]Scope, error)
}
