package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store serves both the AWS backend (virtual-hosted public URLs) and the
// self-hosted MinIO backend (path-style endpoint, presigned URLs).
type S3Store struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	region    string
	endpoint  string
	pathStyle bool
	urlTTL    time.Duration
}

// NewS3 loads credentials from the default AWS chain and issues stable
// public URLs.
func NewS3(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		region:  region,
	}, nil
}

// NewMinIO targets an S3-compatible endpoint with static credentials. URLs
// are presigned for ttl.
func NewMinIO(endpoint, accessKey, secretKey, bucket, region string, ttl time.Duration) *S3Store {
	if region == "" {
		region = "us-east-1"
	}
	endpoint = strings.TrimRight(endpoint, "/")
	client := s3.New(s3.Options{
		Region:                     region,
		BaseEndpoint:               aws.String(endpoint),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return &S3Store{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    bucket,
		region:    region,
		endpoint:  endpoint,
		pathStyle: true,
		urlTTL:    clampTTL(ttl),
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return unavailable("head bucket "+s.bucket, err)
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return unavailable("create bucket "+s.bucket, err)
	}
	return nil
}

func (s *S3Store) Upload(ctx context.Context, name, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("storage: stat %s: %w", localPath, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(name)),
	})
	if err != nil {
		return "", unavailable("put "+name, err)
	}
	return s.URL(ctx, name)
}

func (s *S3Store) URL(ctx context.Context, name string) (string, error) {
	if s.urlTTL <= 0 {
		return s.publicURL(name), nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", unavailable("presign "+name, err)
	}
	return req.URL, nil
}

func (s *S3Store) publicURL(name string) string {
	if s.pathStyle {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, name)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, name)
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return unavailable("delete "+name, err)
	}
	return nil
}

// KeyFromURL strips "/<bucket>/" for path-style URLs and the leading "/" for
// virtual-hosted ones. Presign query parameters are ignored.
func (s *S3Store) KeyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("storage: parse url: %w", err)
	}
	key := u.Path
	if s.pathStyle {
		prefix := "/" + s.bucket + "/"
		if !strings.HasPrefix(key, prefix) {
			return "", fmt.Errorf("storage: url %q is outside bucket %s", rawURL, s.bucket)
		}
		key = strings.TrimPrefix(key, prefix)
	} else {
		key = strings.TrimPrefix(key, "/")
	}
	if key == "" {
		return "", errEmptyKey
	}
	return key, nil
}

var _ Storage = (*S3Store)(nil)
