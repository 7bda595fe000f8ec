package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps artifacts in a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	urlTTL time.Duration
}

// NewGCS uses application default credentials unless credentialsFile is set.
func NewGCS(ctx context.Context, bucket, credentialsFile string, ttl time.Duration) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, urlTTL: clampTTL(ttl)}, nil
}

func (s *GCSStore) Upload(ctx context.Context, name, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType(name)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", unavailable("write "+name, err)
	}
	if err := w.Close(); err != nil {
		return "", unavailable("close "+name, err)
	}
	return s.URL(ctx, name)
}

func (s *GCSStore) URL(ctx context.Context, name string) (string, error) {
	if s.urlTTL <= 0 {
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name), nil
	}
	signed, err := s.client.Bucket(s.bucket).SignedURL(name, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.urlTTL),
	})
	if err != nil {
		return "", unavailable("sign "+name, err)
	}
	return signed, nil
}

func (s *GCSStore) Delete(ctx context.Context, name string) error {
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return unavailable("delete "+name, err)
	}
	return nil
}

// KeyFromURL handles both public and signed URLs, which share the
// storage.googleapis.com/<bucket>/<object> path layout.
func (s *GCSStore) KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("storage: parse url: %w", err)
	}
	prefix := "/" + s.bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", fmt.Errorf("storage: url %q is outside bucket %s", rawURL, s.bucket)
	}
	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" {
		return "", errEmptyKey
	}
	return key, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ Storage = (*GCSStore)(nil)
