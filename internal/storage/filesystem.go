package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists artifacts on the local filesystem and serves them over
// HTTP from baseURL. It is intended for development and single-host setups.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("storage: invalid base url %q", baseURL)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Handler serves stored objects; mount it under baseURL's path.
func (s *FileStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.basePath))
}

func (s *FileStore) Upload(ctx context.Context, name, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := sanitizeKey(name)
	if err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer src.Close()

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", unavailable("ensure directory", err)
	}
	// Write to a temp file first so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", unavailable("create temp", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", unavailable("write "+key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", unavailable("close "+key, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", unavailable("rename "+key, err)
	}
	if err := os.Chmod(fullPath, 0o644); err != nil {
		return "", unavailable("chmod "+key, err)
	}
	return s.URL(ctx, key)
}

func (s *FileStore) URL(ctx context.Context, name string) (string, error) {
	key, err := sanitizeKey(name)
	if err != nil {
		return "", err
	}
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/"), nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	key, err := sanitizeKey(name)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return unavailable("delete "+key, err)
	}
	return nil
}

func (s *FileStore) KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("storage: parse url: %w", err)
	}
	base, _ := url.Parse(s.baseURL)
	prefix := strings.TrimRight(base.Path, "/") + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", fmt.Errorf("storage: url %q is outside %s", rawURL, s.baseURL)
	}
	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" {
		return "", errEmptyKey
	}
	return sanitizeKey(key)
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ Storage = (*FileStore)(nil)
