// Package storage holds the bytes behind project files. Metadata lives in
// Postgres; this package only knows opaque object keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/config"
)

// ErrObjectNotFound is returned by Open when the key has no bytes.
var ErrObjectNotFound = errors.New("storage: object not found")

// BlobStore persists file bytes under opaque keys.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns ErrObjectNotFound for a missing key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove treats a missing key as success.
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (BlobStore, error) {
	switch cfg.Driver {
	case config.StorageDriverLocal:
		store, err := NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		logger.Info("using local blob store", zap.String("dir", cfg.LocalDir))
		return store, nil
	case config.StorageDriverMinio:
		return NewMinioStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
