// Package storage keeps uploaded product and batch images.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageBytes caps the size of an uploaded image.
const MaxImageBytes = 10 << 20

// ImageStore persists an image and returns the public URL it is served from.
type ImageStore interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (string, error)
}

// ObjectKey builds a collision-free key under folder keeping the original extension.
func ObjectKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(folder, uuid.NewString()+ext)
}

func readImage(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}
	return data, http.DetectContentType(data), nil
}

// LocalStore writes images below a directory served statically by the API.
type LocalStore struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string, logger *zap.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}, nil
}

// Dir is the root directory of stored files.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	data, _, err := readImage(r)
	if err != nil {
		return "", err
	}
	key := ObjectKey(folder, filename)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create image folder: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	s.logger.Debug("image stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return s.baseURL + "/" + key, nil
}

var _ ImageStore = (*LocalStore)(nil)
