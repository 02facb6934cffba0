package pat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *Service, *MemStore) {
	t.Helper()
	store := NewMemStore(seedScopes())
	h, err := NewHierarchy(seedScopes())
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	return NewEngine(store, h, opts...), NewService(store, h), store
}

func TestAuthorizeHappyPath(t *testing.T) {
	eng, svc, _ := newTestEngine(t)
	ctx := context.Background()

	raw, tok, err := svc.Issue(ctx, "u1", "ci", []string{"workspaces:read", "workspaces:write"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	d, err := eng.Authorize(ctx, raw, "workspaces:read")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Authorized {
		t.Fatalf("want authorized, got %+v", d)
	}
	if d.TokenID != tok.ID || d.UserID != "u1" {
		t.Fatalf("decision identity mismatch: %+v", d)
	}
	if d.GrantedBy != "workspaces:write" {
		t.Fatalf("granted by = %q, want highest satisfying grant workspaces:write", d.GrantedBy)
	}
	if d.Reason != "" {
		t.Fatalf("unexpected reason on success: %q", d.Reason)
	}
}

func TestAuthorizeGrantTieBreakLowestID(t *testing.T) {
	// Two scopes on different resources cannot tie, so use a synthetic
	// table with two same-level grants on one resource.
	scopes := []Scope{
		{ID: 1, Resource: "repos", Action: "pull", Name: "repos:pull", Level: 1},
		{ID: 2, Resource: "repos", Action: "fetch", Name: "repos:fetch", Level: 1},
	}
	store := NewMemStore(scopes)
	h, err := NewHierarchy(scopes)
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	eng := NewEngine(store, h)
	svc := NewService(store, h)
	ctx := context.Background()

	raw, _, err := svc.Issue(ctx, "u1", "tie", []string{"repos:fetch", "repos:pull"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	d, err := eng.Authorize(ctx, raw, "repos:pull")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.GrantedBy != "repos:pull" {
		t.Fatalf("granted by = %q, want repos:pull (lowest scope id at equal level)", d.GrantedBy)
	}
}

func TestAuthorizeInsufficientScope(t *testing.T) {
	eng, svc, _ := newTestEngine(t)
	ctx := context.Background()

	raw, _, err := svc.Issue(ctx, "u1", "ci", []string{"workspaces:read", "workspaces:write"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	d, err := eng.Authorize(ctx, raw, "workspaces:delete")
	if !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("err = %v, want ErrInsufficientScope", err)
	}
	if d.Authorized {
		t.Fatal("decision must not be authorized")
	}
	if d.Reason != ReasonInsufficientScope {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonInsufficientScope)
	}
	// Scope never crosses resources regardless of level.
	if _, err := eng.Authorize(ctx, raw, "users:read"); !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("cross-resource err = %v, want ErrInsufficientScope", err)
	}
}

func TestAuthorizeRevokedBeatsInvalid(t *testing.T) {
	eng, svc, _ := newTestEngine(t)
	ctx := context.Background()

	raw, tok, err := svc.Issue(ctx, "u1", "ci", []string{"fcs:read"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Revoke(ctx, "u1", tok.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	d, err := eng.Authorize(ctx, raw, "fcs:read")
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked (never ErrInvalidToken)", err)
	}
	if d.Reason != ReasonTokenRevoked {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonTokenRevoked)
	}
}

func TestAuthorizeExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := NewMemStore(seedScopes())
	h, err := NewHierarchy(seedScopes())
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	eng := NewEngine(store, h, WithClock(clock))
	svc := NewService(store, h, WithServiceClock(clock))
	ctx := context.Background()

	past := now.Add(-time.Second)
	if _, _, err := svc.Issue(ctx, "u1", "old", []string{"fcs:read"}, &past); err == nil {
		t.Fatalf("issue accepted past expiry")
	}

	future := now.Add(time.Hour)
	raw, _, err := svc.Issue(ctx, "u1", "short", []string{"fcs:read"}, &future)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Move the clock one second past expiry.
	now = future.Add(time.Second)
	d, err := eng.Authorize(ctx, raw, "fcs:read")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	if d.Reason != ReasonTokenExpired {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonTokenExpired)
	}
}

func TestAuthorizeMalformedAndTruncated(t *testing.T) {
	eng, svc, _ := newTestEngine(t)
	ctx := context.Background()

	raw, _, err := svc.Issue(ctx, "u1", "ci", []string{"fcs:read"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := map[string]error{
		"":               ErrNotAuthenticated,
		"bearer":         ErrInvalidToken,
		"pat_":           ErrInvalidToken,
		raw[:len(raw)-1]: ErrInvalidToken, // truncated valid token
		raw[1:]:          ErrInvalidToken, // missing leading byte
		raw + "x":        ErrInvalidToken, // extended valid token
		"pat_" + raw[8:]: ErrInvalidToken, // prefix swapped out
		"tok_" + raw[4:]: ErrInvalidToken, // wrong marker
	}
	for in, want := range cases {
		d, err := eng.Authorize(ctx, in, "fcs:read")
		if !errors.Is(err, want) {
			t.Errorf("Authorize(%q): err = %v, want %v", in, err, want)
		}
		if d.Authorized {
			t.Errorf("Authorize(%q): must not authorize", in)
		}
	}
}

func TestAuthorizeUnknownRequiredScope(t *testing.T) {
	eng, svc, _ := newTestEngine(t)
	ctx := context.Background()

	raw, _, err := svc.Issue(ctx, "u1", "ci", []string{"fcs:read"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := eng.Authorize(ctx, raw, "fcs:nonsense"); !errors.Is(err, ErrInsufficientScope) {
		t.Fatalf("err = %v, want ErrInsufficientScope for unknown required scope", err)
	}
}

func TestResolveTouchesLastUsed(t *testing.T) {
	eng, svc, store := newTestEngine(t)
	ctx := context.Background()

	raw, tok, err := svc.Issue(ctx, "u1", "ci", []string{"fcs:read"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := eng.Authorize(ctx, raw, "fcs:read"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	got, err := store.Tokens(ctx).Find(ctx, tok.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.LastUsedAt == nil {
		t.Fatal("last used timestamp not recorded")
	}
}
