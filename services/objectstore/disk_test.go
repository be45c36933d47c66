package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core"
)

func TestDisk_Upload(t *testing.T) {
	root := t.TempDir()
	s, err := NewDisk(core.StorageConfig{DiskRoot: root})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, "menu/42/pic.png", strings.NewReader("png-bytes"), "image/png"))

	data, err := os.ReadFile(filepath.Join(root, "menu", "42", "pic.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	// overwrite
	require.NoError(t, s.Upload(ctx, "/menu/42/pic.png", strings.NewReader("new"), "image/png"))
	data, err = os.ReadFile(filepath.Join(root, "menu", "42", "pic.png"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDisk_UploadStaysInRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewDisk(core.StorageConfig{DiskRoot: filepath.Join(root, "media")})
	require.NoError(t, err)

	require.NoError(t, s.Upload(context.Background(), "../../escape.txt", strings.NewReader("x"), "text/plain"))
	_, err = os.Stat(filepath.Join(root, "media", "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.Upload(context.Background(), "/", strings.NewReader("x"), "text/plain"))
}

func TestDisk_UploadCancelled(t *testing.T) {
	s, err := NewDisk(core.StorageConfig{DiskRoot: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Upload(ctx, "menu/a.png", strings.NewReader("x"), "image/png"))
	_, err = os.Stat(filepath.Join(s.Root(), "menu", "a.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		path    string
		want    string
	}{
		{name: "default prefix", path: "menu/1/a.png", want: "/media/menu/1/a.png"},
		{name: "configured base", baseURL: "https://cdn.example.com/", path: "/menu/1/a.png", want: "https://cdn.example.com/menu/1/a.png"},
		{name: "escaped", baseURL: "https://cdn.example.com", path: "menu/1/my pic.png", want: "https://cdn.example.com/menu/1/my%20pic.png"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewDisk(core.StorageConfig{DiskRoot: t.TempDir(), PublicBaseURL: tc.baseURL})
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.PublicURL(tc.path))
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), core.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}
