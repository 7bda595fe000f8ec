// Package storage stores rendered artifacts behind a provider-neutral
// interface. Backends are chosen by configuration only.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"animator/internal/domain"
)

// Storage is implemented by every backend.
type Storage interface {
	// Upload stores the file at localPath under name and returns a
	// retrievable URL.
	Upload(ctx context.Context, name, localPath string) (string, error)
	// URL reissues a retrieval URL for name without uploading again.
	URL(ctx context.Context, name string) (string, error)
	// Delete removes name. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error
	// KeyFromURL recovers the object name from a URL this backend issued.
	KeyFromURL(rawURL string) (string, error)
}

// maxURLTTL is the longest validity S3 and GCS accept for signed URLs.
const maxURLTTL = 7 * 24 * time.Hour

const deleteConcurrency = 8

// DeleteReport lists per-URL outcomes of DeleteMany, in input order.
type DeleteReport struct {
	Succeeded []string `json:"success"`
	Failed    []string `json:"failed"`
}

// DeleteMany deletes every URL independently. One failing or slow object
// never blocks the others, and the batch itself never fails.
func DeleteMany(ctx context.Context, s Storage, urls []string, logger zerolog.Logger) DeleteReport {
	ok := make([]bool, len(urls))
	var g errgroup.Group
	g.SetLimit(deleteConcurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			key, err := s.KeyFromURL(u)
			if err == nil {
				err = s.Delete(ctx, key)
			}
			if err != nil {
				logger.Warn().Err(err).Str("url", u).Msg("storage: delete failed")
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	report := DeleteReport{Succeeded: []string{}, Failed: []string{}}
	for i, u := range urls {
		if ok[i] {
			report.Succeeded = append(report.Succeeded, u)
		} else {
			report.Failed = append(report.Failed, u)
		}
	}
	return report
}

func contentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".mp4") {
		return "video/mp4"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl > maxURLTTL {
		return maxURLTTL
	}
	return ttl
}

var errEmptyKey = errors.New("storage: url does not contain an object key")

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
