// Package storage is the blob store holding submission files and quest
// attachments. Callers keep only the opaque handle returned by Put.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/google/uuid"
)

const (
	ModeLocal = "local"
	ModeS3    = "s3"
)

// ErrInvalidHandle is returned for handles this store did not issue.
var ErrInvalidHandle = errors.New("storage: invalid handle")

// Store writes and releases blobs.
type Store interface {
	// Put stores size bytes from r and returns a handle. name is only used
	// to keep the file extension. A failed Put leaves nothing behind.
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)
	// Release removes the blob. Releasing a missing blob is not an error.
	Release(ctx context.Context, handle string) error
}

// New returns the Store selected by cfg.Mode.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Mode {
	case ModeLocal, "":
		return NewLocal(cfg.LocalDir)
	case ModeS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported mode %q", cfg.Mode)
	}
}

// newKey builds a collision-free object name that keeps name's extension.
func newKey(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && key != "." && key != ".."
}
