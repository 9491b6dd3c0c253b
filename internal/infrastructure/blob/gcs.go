package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

// GCSStore keeps blobs as objects in one Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

// NewGCSStore connects with default credentials, or anonymously when STORAGE_EMULATOR_HOST is set.
func NewGCSStore(ctx context.Context, bucket string, log *logger.Logger) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if os.Getenv("STORAGE_EMULATOR_HOST") != "" {
		opts = []option.ClientOption{option.WithoutAuthentication()}
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	log.Info("object storage initialized", "bucket", bucket)
	return &GCSStore{client: client, bucket: bucket, log: log.With("service", "GCSStore")}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	clean, err := objectKey(key)
	if err != nil {
		return "", err
	}
	w := s.client.Bucket(s.bucket).Object(clean).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(clean)); ct != "" {
		w.ContentType = ct
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", clean, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %s: %w", clean, err)
	}
	return clean, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	clean, err := objectKey(key)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(clean).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, clean)
		}
		return nil, fmt.Errorf("open %s: %w", clean, err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			s.log.Warn("object reader close error", "key", clean, "error", err)
		}
	}()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", clean, err)
	}
	return data, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func objectKey(key string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}
