// Package objectstore stores uploaded media on Google Cloud Storage or on the local disk.
package objectstore

import (
	"context"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/canteen/core"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCS stores objects in a single bucket.
type GCS struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

var _ core.ObjectStorage = (*GCS)(nil)

// NewGCS connects with conf.CredentialsFile, or with the default credentials when it is empty.
func NewGCS(ctx context.Context, conf core.StorageConfig) (*GCS, error) {
	if conf.Bucket == "" {
		return nil, errors.New("storage bucket not configured")
	}
	var opts []option.ClientOption
	if conf.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}

	baseURL := strings.TrimRight(conf.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = gcsPublicHost + "/" + conf.Bucket
	}
	return &GCS{client: client, bucket: conf.Bucket, baseURL: baseURL}, nil
}

func (s *GCS) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(cleanPath(path)).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "writing object %s", path)
	}
	return errors.Wrapf(w.Close(), "closing object %s", path)
}

func (s *GCS) PublicURL(path string) string {
	return s.baseURL + "/" + escapePath(cleanPath(path))
}

func (s *GCS) Close() error {
	return s.client.Close()
}

func cleanPath(p string) string {
	return strings.TrimLeft(p, "/")
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
