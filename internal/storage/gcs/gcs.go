// Package gcs stores vault files in Google Cloud Storage.
package gcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/songon-extension/access-server/internal/config"
	"github.com/songon-extension/access-server/internal/storage"
)

func init() {
	storage.Register("gcs", func(cfg *config.Config) (storage.Storage, error) {
		return New(context.Background(), &cfg.Storage.GCS)
	})
}

type GCSStorage struct {
	client *gcstorage.Client
	bucket string
}

// New uses a service account file when configured, Application Default Credentials otherwise.
func New(ctx context.Context, cfg *config.GCSStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{client: client, bucket: cfg.Bucket}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Upload(ctx context.Context, path string, reader io.Reader) (*storage.UploadResult, error) {
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(writer, hasher), reader)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	if _, err := s.client.Bucket(s.bucket).Object(path).Update(ctx, gcstorage.ObjectAttrsToUpdate{
		Metadata: map[string]string{"sha256": checksum},
	}); err != nil {
		return nil, fmt.Errorf("failed to set GCS metadata: %w", err)
	}

	return &storage.UploadResult{Path: path, Size: written, Checksum: checksum}, nil
}

func (s *GCSStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, storage.ErrNotExist
		}
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	return reader, nil
}

func (s *GCSStorage) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, gcstorage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}
