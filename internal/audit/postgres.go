package audit

import (
	"context"
	"database/sql"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. The *sql.DB passed in must be a
// pool separate from the application's primary one.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, r *Record) error {
	_, err := s.db.ExecContext(ctx,
		`insert into audit_records(id, token_id, user_id, method, path, status, required_scope, authorized, reason, client_ip, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, nullIfEmpty(r.TokenID), nullIfEmpty(r.UserID), r.Method, r.Path,
		r.Status, r.RequiredScope, r.Authorized, r.Reason, r.ClientIP, r.CreatedAt)
	return err
}

func (s *PGStore) ListByToken(ctx context.Context, tokenID string, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, token_id, user_id, method, path, status, required_scope, authorized, reason, client_ip, created_at
		 from audit_records where token_id=$1 order by created_at desc limit $2`, tokenID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var r Record
		var tokID, userID sql.NullString
		if err := rows.Scan(&r.ID, &tokID, &userID, &r.Method, &r.Path, &r.Status,
			&r.RequiredScope, &r.Authorized, &r.Reason, &r.ClientIP, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.TokenID = tokID.String
		r.UserID = userID.String
		out = append(out, &r)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
