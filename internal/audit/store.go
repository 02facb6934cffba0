package audit

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("audit: not found")

// Store persists audit records.
type Store interface {
	Insert(ctx context.Context, r *Record) error
	ListByToken(ctx context.Context, tokenID string, limit int) ([]*Record, error)
}
