package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songon-extension/access-server/internal/config"
)

type nopStorage struct{}

func (nopStorage) Upload(ctx context.Context, path string, reader io.Reader) (*UploadResult, error) {
	return &UploadResult{Path: path}, nil
}
func (nopStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	return nil, ErrNotExist
}
func (nopStorage) Delete(ctx context.Context, path string) error { return nil }
func (nopStorage) Exists(ctx context.Context, path string) (bool, error) { return false, nil }

func TestNewStorage(t *testing.T) {
	Register("nop-test", func(cfg *config.Config) (Storage, error) { return nopStorage{}, nil })
	Register("failing-test", func(cfg *config.Config) (Storage, error) { return nil, errors.New("no bucket") })

	t.Run("dispatches to registered factory", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Backend: "nop-test"}}
		s, err := NewStorage(cfg)
		require.NoError(t, err)
		assert.IsType(t, nopStorage{}, s)
	})

	t.Run("propagates factory errors", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Backend: "failing-test"}}
		_, err := NewStorage(cfg)
		assert.Error(t, err)
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Backend: "ftp"}}
		_, err := NewStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nop-test")
	})
}

func TestDocumentPath(t *testing.T) {
	assert.Equal(t, "parcelles/P1/acd/abc.pdf", DocumentPath("P1", "acd", "abc", ".PDF"))
	assert.Equal(t, "parcelles/P1/plan/abc", DocumentPath("P1", "plan", "abc", ""))
	assert.Equal(t, "parcelles/_/.._x/abc.png", DocumentPath("..", "../x", "abc", "png"))
}
