package pat

import (
	"context"
	"time"
)

// Engine validates presented bearer tokens against hashed storage and the
// scope hierarchy. It is a pure read path: it mutates no shared state and is
// safe for unlimited parallel invocation. Recording decisions is the audit
// recorder's job.
type Engine struct {
	store     Store
	hierarchy *Hierarchy
	now       func() time.Time
}

// EngineOption configures Engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine constructs an Engine over a store and an immutable hierarchy.
func NewEngine(store Store, hierarchy *Hierarchy, opts ...EngineOption) *Engine {
	e := &Engine{store: store, hierarchy: hierarchy, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize checks a raw token against a required scope and returns the
// decision. Failures are terminal for the request; the sentinel error keeps
// the failure kind so callers can map distinct status codes, and the
// decision's Reason keeps it for audit.
func (e *Engine) Authorize(ctx context.Context, rawToken, requiredScope string) (Decision, error) {
	decision := Decision{RequiredScope: requiredScope}

	token, err := e.Resolve(ctx, rawToken)
	if token != nil {
		decision.TokenID = token.ID
		decision.UserID = token.UserID
	}
	if err != nil {
		decision.Reason = reasonFor(err)
		return decision, err
	}

	grants, err := e.store.Tokens(ctx).Grants(ctx, token.ID)
	if err != nil {
		return decision, err
	}

	granted, ok := e.selectGrant(grants, requiredScope)
	if !ok {
		decision.Reason = ReasonInsufficientScope
		return decision, ErrInsufficientScope
	}

	decision.Authorized = true
	decision.GrantedBy = granted.Name

	// Best effort: a failed touch must not fail the request.
	_ = e.store.Tokens(ctx).TouchLastUsed(ctx, token.ID, e.now().UTC())

	return decision, nil
}

// Resolve performs the authentication half of Authorize: structural check,
// digest lookup, and revocation/expiry validation. It returns the matching
// token record so callers can build a principal, and is used on its own by
// the audit middleware to attribute requests.
func (e *Engine) Resolve(ctx context.Context, rawToken string) (*Token, error) {
	if rawToken == "" {
		return nil, ErrNotAuthenticated
	}
	if !HasTokenForm(rawToken) {
		return nil, ErrInvalidToken
	}

	// Indexed prefix narrows the candidate set; digest equality picks the
	// record. Raw values are never compared, and the digest comparison is
	// constant-time.
	digest := Digest(rawToken)
	candidates, err := e.store.Tokens(ctx).FindByPrefix(ctx, rawToken[:DisplayPrefixLen])
	if err != nil {
		return nil, err
	}

	var token *Token
	for _, c := range candidates {
		if DigestEqual(c.Digest, digest) {
			token = c
			break
		}
	}
	if token == nil {
		return nil, ErrInvalidToken
	}
	if token.Revoked {
		return token, ErrTokenRevoked
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(e.now()) {
		return token, ErrTokenExpired
	}
	return token, nil
}

// selectGrant returns the satisfying grant with the highest level; among
// equal levels the lowest scope id wins, keeping the choice deterministic.
func (e *Engine) selectGrant(grants []Scope, requiredScope string) (Scope, bool) {
	var best Scope
	found := false
	for _, g := range grants {
		if !e.hierarchy.Satisfies(g.Name, requiredScope) {
			continue
		}
		if !found || g.Level > best.Level || (g.Level == best.Level && g.ID < best.ID) {
			best = g
			found = true
		}
	}
	return best, found
}

func reasonFor(err error) string {
	switch err {
	case ErrNotAuthenticated:
		return ReasonNotAuthenticated
	case ErrInvalidToken:
		return ReasonInvalidToken
	case ErrTokenRevoked:
		return ReasonTokenRevoked
	case ErrTokenExpired:
		return ReasonTokenExpired
	case ErrInsufficientScope:
		return ReasonInsufficientScope
	default:
		return err.Error()
	}
}
