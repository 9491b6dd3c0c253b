package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

var ErrInvalidKey = errors.New("invalid blob key")

// LocalStore keeps blobs as files under BaseDir.
type LocalStore struct {
	BaseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir for %s: %w", clean, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob for %s: %w", clean, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write blob %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close blob %s: %w", clean, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("commit blob %s: %w", clean, err)
	}
	return clean, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, clean)
		}
		return nil, fmt.Errorf("read blob %s: %w", clean, err)
	}
	return data, nil
}

// resolve maps a slash-separated key onto BaseDir, refusing keys that escape it.
func (s *LocalStore) resolve(key string) (string, string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(strings.TrimSpace(key), "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, filepath.Join(s.BaseDir, filepath.FromSlash(clean)), nil
}
