package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
)

// DefaultDiskURLPrefix is where the API serves the disk root when no public URL is configured.
const DefaultDiskURLPrefix = "/media"

// Disk stores objects under a root directory.
type Disk struct {
	root    string
	baseURL string
}

var _ core.ObjectStorage = (*Disk)(nil)

func NewDisk(conf core.StorageConfig) (*Disk, error) {
	root := conf.DiskRoot
	if root == "" {
		root = "media"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", root)
	}
	baseURL := strings.TrimRight(conf.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultDiskURLPrefix
	}
	return &Disk{root: root, baseURL: baseURL}, nil
}

// Root is the directory holding the objects.
func (s *Disk) Root() string { return s.root }

func (s *Disk) Upload(ctx context.Context, path string, r io.Reader, _ string) error {
	fp, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory of %s", path)
	}

	// write to a temp file first so readers never see a partial object
	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), fp), "storing %s", path)
}

func (s *Disk) PublicURL(path string) string {
	return s.baseURL + "/" + escapePath(cleanPath(path))
}

func (s *Disk) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + cleanPath(path))
	if clean == "/" {
		return "", errors.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// ctxReader stops copying once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
