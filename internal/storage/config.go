package storage

import (
	"context"
	"fmt"
	"time"

	"animator/internal/infra"
)

// Config selects and parameterises a backend.
type Config struct {
	Provider string // minio, s3, gcs, local

	Bucket    string
	Region    string
	Endpoint  string // minio base URL, e.g. http://127.0.0.1:9000
	AccessKey string
	SecretKey string
	URLTTL    time.Duration

	GCSCredentialsFile string

	BasePath string
	BaseURL  string
}

// New builds the configured backend. The self-hosted bucket is created on
// first use.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Provider {
	case "minio":
		store := NewMinIO(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.Region, cfg.URLTTL)
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		return NewS3(ctx, cfg.Bucket, cfg.Region)
	case "gcs":
		return NewGCS(ctx, cfg.Bucket, cfg.GCSCredentialsFile, cfg.URLTTL)
	case "local":
		return NewFileStore(cfg.BasePath, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("storage: unsupported provider %q", cfg.Provider)
	}
}

// ConfigFrom maps the process configuration onto a storage Config.
func ConfigFrom(cfg *infra.Config) Config {
	return Config{
		Provider:           cfg.StorageProvider,
		Bucket:             cfg.BucketName,
		Region:             cfg.AWSRegion,
		Endpoint:           cfg.MinioURL(),
		AccessKey:          cfg.MinioAccessKey,
		SecretKey:          cfg.MinioSecretKey,
		URLTTL:             cfg.StorageURLTTL,
		GCSCredentialsFile: cfg.GCSCredentialsFile,
		BasePath:           cfg.StoragePath,
		BaseURL:            cfg.StorageBaseURL,
	}
}
