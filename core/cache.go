package core

import (
	"context"
	"io"
)

type (
	// Cache is a device-local key/value store.
	// Get reports found=false (and no error) for missing keys.
	Cache interface {
		Get(ctx context.Context, key string) (value []byte, found bool, err error)
		Set(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
	}

	// ObjectStorage stores uploaded media (menu images) and serves them publicly.
	ObjectStorage interface {
		Upload(ctx context.Context, path string, r io.Reader, contentType string) error
		PublicURL(path string) string
	}
)
