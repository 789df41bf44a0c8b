// Package blob stores version file payloads. Keys are opaque strings assigned
// at publish time; the download endpoint streams them back when assembling
// archives.
package blob

import (
	"context"
	"fmt"
	"io"

	"skillhub/internal/platform/config"
)

// Store is implemented by the memory, filesystem, and S3 backends.
//
// Error contract: Get returns sentinel.ErrNotFound (wrapped) for unknown
// keys; other failures come back wrapped with context.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewFromConfig selects the backend named by the deployment config.
func NewFromConfig(ctx context.Context, cfg config.Blob) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "fs":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem blob store requires BLOB_DIR")
		}
		return NewFilesystemStore(cfg.Dir)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 blob store requires BLOB_S3_BUCKET")
		}
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}
