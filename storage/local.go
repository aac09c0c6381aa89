package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores blobs as files in one directory.
type Local struct {
	dir string
}

// NewLocal creates dir if needed and returns a Local store over it.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "./data/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := newKey(name)
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && size >= 0 && n != size {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, key)); err != nil {
		return "", err
	}
	return key, nil
}

func (l *Local) Release(_ context.Context, handle string) error {
	if !validKey(handle) {
		return ErrInvalidHandle
	}
	err := os.Remove(filepath.Join(l.dir, handle))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Path returns the file path of handle.
func (l *Local) Path(handle string) (string, error) {
	if !validKey(handle) {
		return "", ErrInvalidHandle
	}
	return filepath.Join(l.dir, handle), nil
}
