package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"animator/internal/infra"
)

func writeArtifact(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func fetchLen(t *testing.T, rawURL string) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return len(body)
}

// fakeS3 is a minimal path-style object store.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(body)
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestMinIORoundTrip(t *testing.T) {
	backend := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	store := NewMinIO(srv.URL, "minioadmin", "minioadmin123", "video-assets", "", 7*24*time.Hour)
	ctx := context.Background()
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}

	name := "animation_0f8a.mp4"
	path := writeArtifact(t, 4096)
	uploaded, err := store.Upload(ctx, name, path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.Contains(uploaded, "X-Amz-Expires=604800") {
		t.Fatalf("expected a 7 day presigned url, got %s", uploaded)
	}

	reissued, err := store.URL(ctx, name)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if got := fetchLen(t, reissued); got != 4096 {
		t.Fatalf("fetched %d bytes, want 4096", got)
	}

	key, err := store.KeyFromURL(reissued)
	if err != nil || key != name {
		t.Fatalf("KeyFromURL = %q, %v", key, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := backend.objects["/video-assets/"+name]; ok {
		t.Fatal("object still present after delete")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store, err := NewFileStore(root, srv.URL+"/media")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	mux.Handle("/media/", http.StripPrefix("/media", store.Handler()))

	ctx := context.Background()
	name := "animation_7c1e.mp4"
	if _, err := store.Upload(ctx, name, writeArtifact(t, 1500)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	u, err := store.URL(ctx, name)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if got := fetchLen(t, u); got != 1500 {
		t.Fatalf("fetched %d bytes, want 1500", got)
	}

	key, err := store.KeyFromURL(u)
	if err != nil || key != name {
		t.Fatalf("KeyFromURL = %q, %v", key, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, name)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing object should succeed, got %v", err)
	}
}

func TestKeyFromURL(t *testing.T) {
	aws := &S3Store{bucket: "video-assets", region: "eu-west-1"}
	minio := &S3Store{bucket: "video-assets", endpoint: "http://127.0.0.1:9000", pathStyle: true}

	tests := []struct {
		name    string
		store   Storage
		url     string
		want    string
		wantErr bool
	}{
		{name: "aws public", store: aws, url: "https://video-assets.s3.eu-west-1.amazonaws.com/animation_1.mp4", want: "animation_1.mp4"},
		{name: "minio presigned", store: minio, url: "http://127.0.0.1:9000/video-assets/animation_2.mp4?X-Amz-Expires=604800&X-Amz-Signature=abc", want: "animation_2.mp4"},
		{name: "minio other bucket", store: minio, url: "http://127.0.0.1:9000/other/animation_2.mp4", wantErr: true},
		{name: "aws empty key", store: aws, url: "https://video-assets.s3.eu-west-1.amazonaws.com/", wantErr: true},
		{name: "gcs signed", store: &GCSStore{bucket: "clips"}, url: "https://storage.googleapis.com/clips/animation_3.mp4?X-Goog-Signature=ff", want: "animation_3.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.store.KeyFromURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("KeyFromURL = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	aws := &S3Store{bucket: "video-assets", region: "eu-west-1"}
	got, err := aws.URL(context.Background(), "animation_1.mp4")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if want := "https://video-assets.s3.eu-west-1.amazonaws.com/animation_1.mp4"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
}

type flakyStore struct {
	FileStore
	mu      sync.Mutex
	fail    map[string]bool
	deleted []string
}

func (f *flakyStore) KeyFromURL(rawURL string) (string, error) {
	return strings.TrimPrefix(rawURL, "https://cdn.test/"), nil
}

func (f *flakyStore) Delete(ctx context.Context, name string) error {
	if f.fail[name] {
		return errors.New("access denied")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

func TestDeleteManyReportsPartialFailure(t *testing.T) {
	store := &flakyStore{fail: map[string]bool{"animation_b.mp4": true}}
	urls := []string{
		"https://cdn.test/animation_a.mp4",
		"https://cdn.test/animation_b.mp4",
		"https://cdn.test/animation_c.mp4",
	}
	report := DeleteMany(context.Background(), store, urls, zerolog.Nop())

	if len(report.Succeeded) != 2 || report.Succeeded[0] != urls[0] || report.Succeeded[1] != urls[2] {
		t.Fatalf("unexpected succeeded: %v", report.Succeeded)
	}
	if len(report.Failed) != 1 || report.Failed[0] != urls[1] {
		t.Fatalf("unexpected failed: %v", report.Failed)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected two deletes, got %v", store.deleted)
	}
}

func TestDeleteManyEmpty(t *testing.T) {
	report := DeleteMany(context.Background(), &flakyStore{}, nil, zerolog.Nop())
	if report.Succeeded == nil || report.Failed == nil || len(report.Succeeded)+len(report.Failed) != 0 {
		t.Fatalf("expected empty non-nil slices, got %+v", report)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "animation_1.mp4", want: "animation_1.mp4"},
		{in: "/nested/./animation_1.mp4", want: "nested/animation_1.mp4"},
		{in: "..\\secret", wantErr: true},
		{in: "../../etc/passwd", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sanitizeKey(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("sanitizeKey(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := &infra.Config{
		StorageProvider: "local",
		StoragePath:     t.TempDir(),
		StorageBaseURL:  "http://localhost:8080/media",
		StorageURLTTL:   time.Hour,
	}
	store, err := New(context.Background(), ConfigFrom(cfg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("New returned %T, want *FileStore", store)
	}

	cfg.StorageProvider = "ftp"
	if _, err := New(context.Background(), ConfigFrom(cfg)); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
