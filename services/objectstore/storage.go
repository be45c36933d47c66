package objectstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
)

// New returns the object storage named by conf.Backend.
func New(ctx context.Context, conf core.StorageConfig) (core.ObjectStorage, error) {
	switch conf.Backend {
	case "gcs":
		return NewGCS(ctx, conf)
	case "disk", "":
		return NewDisk(conf)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Backend)
	}
}
