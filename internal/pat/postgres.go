package pat

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Tokens(context.Context) TokenStore { return &tokenStore{db: s.db} }
func (s *PGStore) Scopes(context.Context) ScopeStore { return &scopeStore{db: s.db} }

// Token store ---------------------------------------------------------------
type tokenStore struct{ db *sql.DB }

const tokenColumns = `id, user_id, name, token_prefix, token_hash, created_at, expires_at, last_used_at, is_revoked`

func (s *tokenStore) Create(ctx context.Context, t *Token, scopeNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`insert into personal_access_tokens(id, user_id, name, token_prefix, token_hash, created_at, expires_at, is_revoked)
		 values($1,$2,$3,$4,$5,$6,$7,false)`,
		t.ID, t.UserID, t.Name, t.Prefix, t.Digest, t.CreatedAt, t.ExpiresAt,
	)
	if err != nil {
		return err
	}
	for _, name := range scopeNames {
		res, err := tx.ExecContext(ctx,
			`insert into token_scopes(token_id, scope_id)
			 select $1, id from scopes where name=$2`, t.ID, name,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: scope %q does not exist", ErrInvalidInput, name)
		}
	}
	return tx.Commit()
}

func (s *tokenStore) Find(ctx context.Context, id string) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from personal_access_tokens where id=$1`, id)
	return scanToken(row)
}

func (s *tokenStore) FindByPrefix(ctx context.Context, prefix string) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+tokenColumns+` from personal_access_tokens where token_prefix=$1`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTokens(rows)
}

func (s *tokenStore) ListByUser(ctx context.Context, userID string) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+tokenColumns+` from personal_access_tokens where user_id=$1 order by created_at desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTokens(rows)
}

func (s *tokenStore) Grants(ctx context.Context, tokenID string) ([]Scope, error) {
	rows, err := s.db.QueryContext(ctx,
		`select sc.id, sc.resource, sc.action, sc.name, sc.level
		 from scopes sc join token_scopes ts on ts.scope_id=sc.id
		 where ts.token_id=$1 order by sc.id`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []Scope
	for rows.Next() {
		var sc Scope
		if err := rows.Scan(&sc.ID, &sc.Resource, &sc.Action, &sc.Name, &sc.Level); err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

func (s *tokenStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update personal_access_tokens set is_revoked=true where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *tokenStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update personal_access_tokens set last_used_at=$2 where id=$1`, id, at)
	return err
}

func scanToken(row *sql.Row) (*Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Prefix, &t.Digest,
		&t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt, &t.Revoked)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanTokens(rows *sql.Rows) ([]*Token, error) {
	var tokens []*Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Prefix, &t.Digest,
			&t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt, &t.Revoked); err != nil {
			return nil, err
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// Scope store ---------------------------------------------------------------
type scopeStore struct{ db *sql.DB }

func (s *scopeStore) All(ctx context.Context) ([]Scope, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, resource, action, name, level from scopes order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []Scope
	for rows.Next() {
		var sc Scope
		if err := rows.Scan(&sc.ID, &sc.Resource, &sc.Action, &sc.Name, &sc.Level); err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}
