package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var _ Backend = (*Local)(nil)

// Local stores objects on the filesystem. Temp objects live under tmp/ named
// by upload id; promoted objects are sharded by the first two characters of
// their short id, fcs/ab/abcdef123456.fcs, to keep directories small.
type Local struct {
	base string
}

func NewLocal(base string) (*Local, error) {
	for _, dir := range []string{filepath.Join(base, "tmp"), filepath.Join(base, "fcs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: init %s: %w", dir, err)
		}
	}
	return &Local{base: base}, nil
}

func (l *Local) tempPath(uploadID string) string {
	return filepath.Join(l.base, "tmp", uploadID+".part")
}

func (l *Local) CreateTemp(_ context.Context, uploadID string, size int64) error {
	path := l.tempPath(uploadID)
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyExists
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	// Preallocate so out-of-order chunk writes always have a backing range.
	return f.Truncate(size)
}

func (l *Local) WriteChunk(_ context.Context, uploadID string, offset int64, data []byte) error {
	f, err := os.OpenFile(l.tempPath(uploadID), os.O_WRONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if offset < 0 || offset+int64(len(data)) > info.Size() {
		return ErrOutOfBounds
	}
	_, err = f.WriteAt(data, offset)
	return err
}

func (l *Local) ReadTemp(_ context.Context, uploadID string) (io.ReadCloser, error) {
	f, err := os.Open(l.tempPath(uploadID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (l *Local) Promote(_ context.Context, uploadID, shortID string) (string, error) {
	location := filepath.ToSlash(filepath.Join("fcs", shortID[:2], shortID+".fcs"))
	dst := filepath.Join(l.base, filepath.FromSlash(location))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(l.tempPath(uploadID), dst); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return location, nil
}

func (l *Local) DiscardTemp(_ context.Context, uploadID string) error {
	err := os.Remove(l.tempPath(uploadID))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (l *Local) Open(_ context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.base, filepath.FromSlash(location)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (l *Local) Delete(_ context.Context, location string) error {
	err := os.Remove(filepath.Join(l.base, filepath.FromSlash(location)))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}
