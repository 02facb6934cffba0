package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound      = errors.New("storage: object not found")
	ErrOutOfBounds   = errors.New("storage: write outside allocated range")
	ErrAlreadyExists = errors.New("storage: object already exists")
)

// Backend stores uploaded files. Uploads are staged: chunks land in a
// preallocated temp object addressed by upload id, and Promote moves the
// assembled bytes to their permanent location. A failed upload's temp object
// is kept for inspection until a sweeper discards it.
type Backend interface {
	// CreateTemp allocates a temp object of exactly size bytes.
	CreateTemp(ctx context.Context, uploadID string, size int64) error

	// WriteChunk writes data into the temp object at offset.
	WriteChunk(ctx context.Context, uploadID string, offset int64, data []byte) error

	// ReadTemp returns the fully assembled temp object.
	ReadTemp(ctx context.Context, uploadID string) (io.ReadCloser, error)

	// Promote moves the temp object to its permanent location derived from
	// shortID and returns that location.
	Promote(ctx context.Context, uploadID, shortID string) (string, error)

	// DiscardTemp removes a temp object.
	DiscardTemp(ctx context.Context, uploadID string) error

	// Open returns a reader over a promoted object.
	Open(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes a promoted object.
	Delete(ctx context.Context, location string) error
}
