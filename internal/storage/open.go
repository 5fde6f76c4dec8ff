package storage

import (
	"context"
	"fmt"

	"github.com/cvdreamjob/apiserver/config"
)

// Open builds the backend selected by cfg.Backend and ensures its bucket
// exists. It returns nil, nil when no backend is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "s3":
		backend, err = NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s storage: %w", cfg.Backend, err)
	}

	s := NewStorage(backend)
	if err := backend.EnsureBucket(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%s storage: ensure bucket %q: %w", cfg.Backend, backend.Bucket(), err)
	}
	return s, nil
}
