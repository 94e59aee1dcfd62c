package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// Storage hands out short-lived read links for course media stored in the
// S3 bucket. Uploads are owned by the course-management service; checkout
// only ever reads.
type Storage struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewStorage(client *minio.Client, bucket string, ttl time.Duration) *Storage {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Storage{
		client: client,
		bucket: bucket,
		ttl:    ttl,
	}
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}

	return nil
}

// PresignGet returns a time-limited GET URL for the given object key. An
// empty key returns an empty URL, not an error: courses without a thumbnail
// are a normal state.
func (s *Storage) PresignGet(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	if s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get for %q: %w", key, err)
	}

	return signed.String(), nil
}
