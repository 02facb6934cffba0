package pat

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewPGStore(db), mock
}

func tokenRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "name", "token_prefix", "token_hash",
		"created_at", "expires_at", "last_used_at", "is_revoked",
	})
}

func TestPGCreateInsertsTokenAndScopes(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	tok := &Token{ID: "t1", UserID: "u1", Name: "ci", Prefix: "pat_abcd", Digest: "deadbeef", CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into personal_access_tokens`)).
		WithArgs("t1", "u1", "ci", "pat_abcd", "deadbeef", now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into token_scopes`)).
		WithArgs("t1", "fcs:read").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into token_scopes`)).
		WithArgs("t1", "fcs:write").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Tokens(ctx).Create(ctx, tok, []string{"fcs:read", "fcs:write"}); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestPGCreateUnknownScopeRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	tok := &Token{ID: "t1", UserID: "u1", Name: "ci", Prefix: "pat_abcd", Digest: "deadbeef", CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into personal_access_tokens`)).
		WithArgs("t1", "u1", "ci", "pat_abcd", "deadbeef", now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into token_scopes`)).
		WithArgs("t1", "nope:read").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Tokens(ctx).Create(ctx, tok, []string{"nope:read"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPGFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`select`)).
		WithArgs("missing").
		WillReturnRows(tokenRows())

	_, err := store.Tokens(ctx).Find(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGFindByPrefix(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`where token_prefix=$1`)).
		WithArgs("pat_abcd").
		WillReturnRows(tokenRows().
			AddRow("t1", "u1", "ci", "pat_abcd", "deadbeef", now, nil, nil, false).
			AddRow("t2", "u2", "cd", "pat_abcd", "cafebabe", now, nil, nil, true))

	toks, err := store.Tokens(ctx).FindByPrefix(ctx, "pat_abcd")
	if err != nil {
		t.Fatalf("find by prefix: %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("len = %d, want 2", len(toks))
	}
	if toks[0].ID != "t1" || toks[1].Revoked != true {
		t.Fatalf("rows mismatch: %+v %+v", toks[0], toks[1])
	}
}

func TestPGGrantsOrderedByScopeID(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`order by sc.id`)).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "name", "level"}).
			AddRow(int64(1), "workspaces", "read", "workspaces:read", 1).
			AddRow(int64(2), "workspaces", "write", "workspaces:write", 2))

	grants, err := store.Tokens(ctx).Grants(ctx, "t1")
	if err != nil {
		t.Fatalf("grants: %v", err)
	}
	if len(grants) != 2 || grants[0].Name != "workspaces:read" || grants[1].Level != 2 {
		t.Fatalf("grants = %+v", grants)
	}
}

func TestPGRevoke(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`set is_revoked=true`)).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.Tokens(ctx).Revoke(ctx, "t1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`set is_revoked=true`)).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.Tokens(ctx).Revoke(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGScopesAll(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`from scopes order by id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "name", "level"}).
			AddRow(int64(1), "workspaces", "read", "workspaces:read", 1))

	scopes, err := store.Scopes(ctx).All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(scopes) != 1 || scopes[0].Resource != "workspaces" {
		t.Fatalf("scopes = %+v", scopes)
	}
}
